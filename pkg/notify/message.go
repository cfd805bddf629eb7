package notify

import (
	"fmt"
	"strings"

	"dealhound/pkg/models"
	"dealhound/pkg/rates"
)

// DealMessage renders the alert text for one deal. RUB-priced listings carry
// an approximate BYN conversion for Belarusian subscribers; BYN listings stay
// single-currency.
func DealMessage(l models.Listing, currency string, conv *rates.Provider) string {
	percent := 0.0
	if l.MedianPrice > 0 {
		percent = l.Savings / l.MedianPrice * 100
	}
	median := int(l.MedianPrice)
	savings := int(l.Savings)

	memory := l.Capacity
	if memory == "" {
		memory = "не указана"
	}

	dateLine := ""
	if !l.FirstSeen.IsZero() {
		dateLine = fmt.Sprintf("\n📅 Дата: %s", l.FirstSeen.Format("02.01.2006 15:04"))
	}

	var priceLine, medianLine, savingsLine string
	if currency == "RUB" && conv != nil {
		priceLine = fmt.Sprintf("💰 Цена: %s ₽ (~%s BYN)", group(l.Price), group(int(conv.RUBToBYN(float64(l.Price)))))
		medianLine = fmt.Sprintf("📊 Медианная цена: %s ₽ (~%s BYN)", group(median), group(int(conv.RUBToBYN(l.MedianPrice))))
		savingsLine = fmt.Sprintf("💵 Экономия: %s ₽ (~%s BYN) (%.1f%%)", group(savings), group(int(conv.RUBToBYN(l.Savings))), percent)
	} else {
		priceLine = fmt.Sprintf("💰 Цена: %s %s", group(l.Price), currency)
		medianLine = fmt.Sprintf("📊 Медианная цена: %s %s", group(median), currency)
		savingsLine = fmt.Sprintf("💵 Экономия: %s %s (%.1f%%)", group(savings), currency, percent)
	}

	return fmt.Sprintf(`🎯 Найдено выгодное предложение на %s!

📱 Модель: %s
%s
%s
%s

🏙 Город: %s
💾 Память: %s%s

🔗 %s`,
		displayName(l.Source), l.Model, priceLine, medianLine, savingsLine,
		l.City, memory, dateLine, l.URL)
}

func displayName(source string) string {
	if source == "" {
		return source
	}
	return strings.ToUpper(source[:1]) + source[1:]
}

// group formats an amount with thin space thousand separators.
func group(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
