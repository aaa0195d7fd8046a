package structs

// EnvelopeApi is the body of POST /deliver, for relays and users alike.
type EnvelopeApi struct {
	Envelope string `json:"envelope"`
}

// ResultApi wraps the diagnostic getters' answers. Result is null until a message is seen.
type ResultApi[T any] struct {
	Result *T `json:"result"`
}
