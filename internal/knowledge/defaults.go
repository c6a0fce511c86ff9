package knowledge

// Default returns the built-in knowledge base for kind: the shipped FAQ set
// for KindFAQ, an empty intent list for KindTraining. Used as the final tier
// when neither the network nor the persisted cache can serve.
func Default(kind Kind) *Base {
	if kind == KindTraining {
		return &Base{Intents: []Intent{}}
	}
	return &Base{
		FAQs: []FAQ{
			{
				Keywords:   []string{"warranty", "guarantee", "cover"},
				Response:   "Our products have a 2-year warranty 🎉",
				ResponseSW: "Bidhaa zetu zina dhamana ya miaka 2 🎉",
				Category:   "product_info",
			},
			{
				Keywords:   []string{"payment", "pay", "mpesa", "buy"},
				Response:   "You can pay via M-Pesa Paybill 123456.",
				ResponseSW: "Unaweza kulipa kupitia M-Pesa Paybill 123456.",
				Category:   "payment",
			},
			{
				Keywords:   []string{"hello", "hi", "help"},
				Response:   "Hello! Thank you for contacting Sun King. How can we assist you today?",
				ResponseSW: "Hujambo! Tunashukuru kwa kuwasiliana na Sun King, je, ungependa kuhudumiwa vipi leo?",
				Category:   "greeting",
			},
		},
	}
}
