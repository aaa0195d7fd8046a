package structs

// PublicRelayApi is one directory entry: everything a sender needs to wrap a layer for a relay.
type PublicRelayApi struct {
	ID        int    `json:"id"`
	PublicKey string `json:"publicKey"` // base64 SPKI, see keys.EncodePublicKey
}

// RelayListApi is the body of GET /relays.
type RelayListApi struct {
	Relays []PublicRelayApi `json:"relays"`
}
