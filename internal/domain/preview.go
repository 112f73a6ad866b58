package domain

import "time"

// TradePreview is a proposed-but-unexecuted order awaiting an explicit human
// decision. Read exactly once by the confirmation step, or expired unread.
type TradePreview struct {
	Token     string       `json:"confirmationToken"`
	Order     OrderRequest `json:"order"`
	OwnerID   string       `json:"ownerId"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ConfirmResult is the outcome of redeeming a confirmation token. Exactly one
// of Order (accepted) or Cancel (rejected) is set.
type ConfirmResult struct {
	Accepted bool         `json:"accepted"`
	Order    *OrderResult `json:"order,omitempty"`
	Cancel   *CancelAck   `json:"cancel,omitempty"`
}
