package model

// OtpRecord is the mailbox payload deposited by the SMS gateway. Only OTP is
// required; the rest is informational.
type OtpRecord struct {
	OTP        string `json:"otp"`
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	ReceivedAt string `json:"received_at"`
	Port       string `json:"port"`
	IMEI       string `json:"imei"`
	Index      int    `json:"index"`
}
