package validation

// CheckoutData is what the intake extracts from a completed checkout session
// before an order row is written.
type CheckoutData struct {
	SessionID string `validate:"required"`                 // state-store primary key
	Email     string `validate:"omitempty,email"`          // delivery address; empty is tolerated
	Name      string `validate:"max=64"`                   // localized name, drawn with the primary font
	Romaji    string `validate:"max=64,printascii_or_empty"` // romanized name, drawn with the secondary font
}
