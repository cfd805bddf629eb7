package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealhound/pkg/models"
	"dealhound/pkg/rates"
)

func TestSend(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram("test-token", zerolog.Nop())
	tg.baseURL = srv.URL

	err := tg.Send(context.Background(), 42, "привет")
	require.NoError(t, err)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, int64(42), gotBody.ChatID)
	assert.Equal(t, "привет", gotBody.Text)
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"ok":false,"description":"Forbidden: bot was blocked by the user"}`)
	}))
	defer srv.Close()

	tg := NewTelegram("t", zerolog.Nop())
	tg.baseURL = srv.URL

	err := tg.Send(context.Background(), 42, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by the user")
}

func TestDealMessageBYN(t *testing.T) {
	l := models.Listing{
		Source:      "kufar",
		Model:       "iPhone 13",
		Price:       1200,
		MedianPrice: 1800,
		Savings:     600,
		City:        "Минск",
		Capacity:    "128 ГБ",
		URL:         "https://www.kufar.by/item/123",
		FirstSeen:   time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC),
	}

	msg := DealMessage(l, "BYN", nil)
	assert.Contains(t, msg, "Найдено выгодное предложение на Kufar!")
	assert.Contains(t, msg, "📱 Модель: iPhone 13")
	assert.Contains(t, msg, "💰 Цена: 1 200 BYN")
	assert.Contains(t, msg, "📊 Медианная цена: 1 800 BYN")
	assert.Contains(t, msg, "💵 Экономия: 600 BYN (33.3%)")
	assert.Contains(t, msg, "🏙 Город: Минск")
	assert.Contains(t, msg, "💾 Память: 128 ГБ")
	assert.Contains(t, msg, "📅 Дата: 27.08.2026 14:30")
	assert.Contains(t, msg, "https://www.kufar.by/item/123")
}

func TestDealMessageRUBCarriesBYNConversion(t *testing.T) {
	l := models.Listing{
		Source:      "avito",
		Model:       "iPhone 14 Pro",
		Price:       60000,
		MedianPrice: 75000,
		Savings:     15000,
		City:        "Москва",
		URL:         "https://www.avito.ru/123",
	}

	// Default conversion rate is 30 RUB per BYN.
	msg := DealMessage(l, "RUB", rates.NewProvider(zerolog.Nop()))
	assert.Contains(t, msg, "💰 Цена: 60 000 ₽ (~2 000 BYN)")
	assert.Contains(t, msg, "📊 Медианная цена: 75 000 ₽ (~2 500 BYN)")
	assert.Contains(t, msg, "💵 Экономия: 15 000 ₽ (~500 BYN) (20.0%)")
	assert.Contains(t, msg, "💾 Память: не указана")
	assert.NotContains(t, msg, "📅", "no date line without a first-seen timestamp")
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "0", group(0))
	assert.Equal(t, "999", group(999))
	assert.Equal(t, "1 000", group(1000))
	assert.Equal(t, "1 234 567", group(1234567))
	assert.Equal(t, "-55 000", group(-55000))
}
