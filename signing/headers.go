package signing

// Header names carried by signed requests and responses.
const (
	HeaderDate      = "Date"
	HeaderService   = "X-Service"
	HeaderSignature = "X-Signature"
)
