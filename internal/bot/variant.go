package bot

import "github.com/edgard/polybot/internal/instruction"

// Variant is the behavior a message is handled with.
type Variant int

const (
	VariantEcho Variant = iota
	VariantQuote
	VariantTransform
	VariantPredict
)

func (v Variant) String() string {
	switch v {
	case VariantEcho:
		return "echo"
	case VariantQuote:
		return "quote"
	case VariantTransform:
		return "transform"
	case VariantPredict:
		return "predict"
	default:
		return "unknown"
	}
}

// Select picks the variant for msg. Replies are quoted even when they carry
// a photo; a photo captioned "predict" runs detection; any other photo is
// transformed; everything else is echoed.
func Select(msg InboundMessage) Variant {
	switch {
	case msg.IsReply():
		return VariantQuote
	case msg.HasImage() && instruction.IsPredict(msg.Caption):
		return VariantPredict
	case msg.HasImage():
		return VariantTransform
	default:
		return VariantEcho
	}
}
