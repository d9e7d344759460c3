package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature проверяет подпись клиентского редиректа после
// оплаты: HMAC-SHA256 от "order_id|payment_id" в hex. Сравнение
// константное по времени, чтобы несовпадение байтов нельзя было
// прощупать по задержке ответа.
func VerifyPaymentSignature(orderID, paymentID, signature string, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature проверяет подпись вебхука: HMAC-SHA256 от точных
// сырых байтов тела запроса. Тело нельзя пересериализовывать из
// разобранной структуры — порядок ключей и пробелы ломают подпись.
func VerifyWebhookSignature(body []byte, signature string, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
