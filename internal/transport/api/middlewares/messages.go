package middlewares

import (
	"golang.org/x/text/language"
)

var (
	// первым идет язык по умолчанию
	supportedLanguages = []language.Tag{language.Turkish, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

var messages = map[language.Tag]map[string]string{
	language.Turkish: {
		CodeValidation:         "Geçersiz istek",
		CodeSelfPurchase:       "Kendi ilanınızı satın alamazsınız",
		CodeListingUnavailable: "İlan satışta değil",
		CodeOutOfStock:         "Stokta yok",
		CodeInsufficientFunds:  "Yetersiz bakiye",
		CodeVoucherNotFound:    "Geçersiz bakiye kodu",
		CodeVoucherExpired:     "Bu kodun süresi dolmuş",
		CodeVoucherUsed:        "Bu kod zaten kullanılmış",
		CodeAlreadyProcessed:   "Bu talep zaten işlenmiş",
		CodeInvalidTransition:  "Sipariş bu durumda değiştirilemez",
		CodePaymentAfterCancel: "Ödeme iptal edilmiş siparişe geldi, inceleme için kaydedildi",
		CodeNotFound:           "Bulunamadı",
		CodeForbidden:          "Bu işlem için yetkiniz yok",
		CodeConflict:           "İşlem devam ediyor, lütfen tekrar deneyin",
		CodeUnauthorized:       "Oturum açmanız gerekiyor",
		CodeSettlementFailed:   "İşlem tamamlanamadı, destek ekibi bilgilendirildi",
		CodeInternal:           "Bir hata oluştu",
	},
	language.English: {
		CodeValidation:         "Invalid request",
		CodeSelfPurchase:       "You cannot buy your own listing",
		CodeListingUnavailable: "Listing is not available",
		CodeOutOfStock:         "Out of stock",
		CodeInsufficientFunds:  "Insufficient balance",
		CodeVoucherNotFound:    "Invalid balance code",
		CodeVoucherExpired:     "This code has expired",
		CodeVoucherUsed:        "This code has already been used",
		CodeAlreadyProcessed:   "This request has already been processed",
		CodeInvalidTransition:  "Order cannot be changed in its current state",
		CodePaymentAfterCancel: "Payment arrived for a cancelled order and was recorded for review",
		CodeNotFound:           "Not found",
		CodeForbidden:          "You are not allowed to do this",
		CodeConflict:           "Operation in progress, please retry",
		CodeUnauthorized:       "Authentication required",
		CodeSettlementFailed:   "Operation could not be completed, support has been notified",
		CodeInternal:           "Something went wrong",
	},
}

// Message сообщение для кода ошибки на языке из заголовка Accept-Language. По умолчанию турецкий.
func Message(acceptLanguage, code string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, idx, _ := languageMatcher.Match(tags...)
	catalog := messages[supportedLanguages[idx]]
	if msg, ok := catalog[code]; ok {
		return msg
	}
	return catalog[CodeInternal]
}
