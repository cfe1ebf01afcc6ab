package command

// Intent identifies what a voice command asks the assistant to do.
type Intent string

// Intents, in the order their commands are declared.
const (
	IntentNone           Intent = ""
	IntentIdentify       Intent = "identify"
	IntentPrice          Intent = "price"
	IntentAdd            Intent = "add"
	IntentRemove         Intent = "remove"
	IntentCart           Intent = "cart"
	IntentCheckout       Intent = "checkout"
	IntentHelp           Intent = "help"
	IntentRepeat         Intent = "repeat"
	IntentStop           Intent = "stop"
	IntentNext           Intent = "next"
	IntentConfirm        Intent = "confirm"
	IntentCancelCheckout Intent = "cancel_checkout"
)

// CheckoutOnly reports whether the intent only means something while a
// checkout is running.
func (i Intent) CheckoutOnly() bool {
	switch i {
	case IntentNext, IntentConfirm, IntentCancelCheckout:
		return true
	}
	return false
}

// Command is one entry of the command table.
type Command struct {
	Intent      Intent   `json:"action"`
	Patterns    []string `json:"patterns"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// Commands is the trigger phrase table. Declaration order is the tie-breaker
// for every matching strategy.
var Commands = []Command{
	{
		Intent: IntentIdentify,
		Patterns: []string{
			"what is this",
			"identify this",
			"what am i looking at",
			"tell me what this is",
			"identify object",
			"what do you see",
			"scan this",
			"analyze this",
		},
		Description: "Identify the object in front of the camera",
		Examples:    []string{"What is this?", "Tell me what this is", "Identify this object"},
	},
	{
		Intent: IntentPrice,
		Patterns: []string{
			"what's the price",
			"how much does this cost",
			"price check",
			"what does this cost",
			"how much is this",
			"price of this",
			"cost of this",
			"how expensive is this",
		},
		Description: "Get the price of the last identified item",
		Examples:    []string{"What's the price?", "How much does this cost?", "Price check"},
	},
	{
		Intent: IntentAdd,
		Patterns: []string{
			"add to cart",
			"add this to cart",
			"put in cart",
			"add item",
			"add this item",
			"buy this",
			"purchase this",
			"i want this",
			"add to basket",
		},
		Description: "Add the current item to your shopping cart",
		Examples:    []string{"Add to cart", "Add this item", "I want this"},
	},
	{
		Intent: IntentRemove,
		Patterns: []string{
			"remove from cart",
			"remove this from cart",
			"take out of cart",
			"remove item",
			"delete from cart",
			"don't want this",
			"remove this item",
			"take this out",
		},
		Description: "Remove the current item from your cart",
		Examples:    []string{"Remove from cart", "Remove this item", "Don't want this"},
	},
	{
		Intent: IntentCart,
		Patterns: []string{
			"show cart",
			"what's in my cart",
			"cart contents",
			"review cart",
			"check cart",
			"my cart",
			"shopping cart",
			"what did i buy",
			"cart summary",
		},
		Description: "Review your shopping cart contents and total",
		Examples:    []string{"Show cart", "What's in my cart?", "Cart summary"},
	},
	{
		Intent: IntentCheckout,
		Patterns: []string{
			"checkout",
			"proceed to checkout",
			"pay now",
			"complete purchase",
			"finish shopping",
			"buy now",
			"complete order",
			"finalize purchase",
			"go to checkout",
			"start checkout",
		},
		Description: "Proceed to checkout and complete your purchase",
		Examples:    []string{"Checkout", "Proceed to checkout", "Complete purchase"},
	},
	{
		Intent: IntentHelp,
		Patterns: []string{
			"help",
			"what can you do",
			"commands",
			"voice commands",
			"how to use",
			"instructions",
			"what can i say",
			"available commands",
		},
		Description: "Get help and list available voice commands",
		Examples:    []string{"Help", "What can you do?", "Available commands"},
	},
	{
		Intent:      IntentRepeat,
		Patterns:    []string{"repeat", "say that again", "repeat that", "what did you say", "i didn't hear", "pardon", "excuse me"},
		Description: "Repeat the last message",
		Examples:    []string{"Repeat", "Say that again", "What did you say?"},
	},
	{
		Intent:      IntentStop,
		Patterns:    []string{"stop", "cancel", "never mind", "quit", "exit", "stop listening", "pause"},
		Description: "Stop the current action or cancel listening",
		Examples:    []string{"Stop", "Cancel", "Never mind"},
	},
	{
		Intent:      IntentNext,
		Patterns:    []string{"next", "continue", "proceed", "next step", "go ahead"},
		Description: "Continue to the next step in checkout",
		Examples:    []string{"Next", "Continue", "Proceed"},
	},
	{
		Intent:      IntentConfirm,
		Patterns:    []string{"confirm", "yes", "confirm order", "that's correct", "looks good"},
		Description: "Confirm the current step or order",
		Examples:    []string{"Confirm", "Yes", "That's correct"},
	},
	{
		Intent:      IntentCancelCheckout,
		Patterns:    []string{"cancel checkout", "cancel order", "go back", "abort", "cancel purchase"},
		Description: "Cancel the current checkout process",
		Examples:    []string{"Cancel checkout", "Cancel order", "Go back"},
	},
}
