package persona

import (
	"fmt"
	"strings"
)

// Greeting opens a new conversation.
func (p Persona) Greeting(customerName string) string {
	name := strings.TrimSpace(customerName)
	if name == "" {
		name = "there"
	}
	switch p.Type {
	case Aggressive:
		return fmt.Sprintf("Hi %s, %s here, %s. I've reviewed your details and there are strong options we can move on today. What would you like to tackle first?", name, p.FirstName(), p.Title)
	case Balanced:
		return fmt.Sprintf("Hi %s! I'm %s, your %s. I've had a look at your submission. Happy to walk you through how much you can borrow or answer any questions.", name, p.FirstName(), p.Title)
	default:
		return fmt.Sprintf("Hi %s, I'm %s. There's no rush at all. Ask me anything about home loans and we'll go through it together, one step at a time.", name, p.FirstName())
	}
}

// CalculationIntro prefixes an affordability summary.
func (p Persona) CalculationIntro() string {
	switch p.Type {
	case Aggressive:
		return "Here are your numbers:"
	case Balanced:
		return "I've run the figures based on what you shared:"
	default:
		return "Let me break down what the current rules allow for you:"
	}
}

// MissingProfile asks for the figures the calculator needs.
func (p Persona) MissingProfile() string {
	switch p.Type {
	case Aggressive:
		return "To give you exact numbers I need your monthly income, age and the property price. Send those over and I'll come straight back."
	case Balanced:
		return "I can work that out for you. Could you share your monthly income, your age and the property price you're looking at?"
	default:
		return "Happy to help estimate that. When you're ready, just let me know your monthly income, your age and roughly what the property costs."
	}
}

// Fallback is sent when nothing better can be produced. It never mentions
// the underlying failure.
func (p Persona) Fallback() string {
	switch p.Type {
	case Aggressive:
		return fmt.Sprintf("Thanks for the message! I'm pulling the details together and will get back to you shortly. %s.", p.SignOff)
	case Balanced:
		return fmt.Sprintf("Thanks for your question! Let me check on that and get back to you shortly. %s.", p.SignOff)
	default:
		return fmt.Sprintf("Thank you for reaching out. I'll look into this and reply soon. %s.", p.SignOff)
	}
}

// Handoff tells the customer a human broker will take over.
func (p Persona) Handoff() string {
	return fmt.Sprintf("I'll loop in one of our licensed brokers to go through this with you personally. %s.", p.SignOff)
}

// RateInquiry answers questions about interest rates without quoting a live
// rate.
func (p Persona) RateInquiry() string {
	switch p.Type {
	case Aggressive:
		return "Bank packages move weekly, so I'll pull today's best fixed and floating rates for your profile. Shall I send a comparison now?"
	case Balanced:
		return "Rates change often between banks. I can compare current fixed and floating packages that suit your loan. Would that help?"
	default:
		return "Interest rates vary by bank and package. We can look at a few options together whenever you're comfortable."
	}
}

// DocumentChecklist lists what banks ask for at the in-principle stage.
func (p Persona) DocumentChecklist() string {
	intro := "For an in-principle approval the banks usually ask for:"
	if p.Type == Conservative {
		intro = "No need to gather everything at once. Banks usually look at:"
	}
	return intro + " your NRIC, latest 3 months' payslips (or 2 years of NOA if self-employed), CPF contribution history, and details of any existing loans. " + p.SignOff + "."
}

// Resolved closes the conversation.
func (p Persona) Resolved() string {
	return fmt.Sprintf("Thanks for chatting with me today. If anything else comes up, just message here and I'll pick it up. %s, %s.", p.SignOff, p.FirstName())
}

// SystemPrompt describes the persona to an LLM drafting replies on its
// behalf.
func (p Persona) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s at a Singapore mortgage brokerage. ", p.Name, p.Title)
	fmt.Fprintf(&b, "Your tone is %s. Style: %s. You specialise in %s.\n", strings.Join(p.Tone, ", "), p.ResponseStyle, p.Specialty)
	b.WriteString("Rules: answer in at most 4 short sentences; never quote a specific bank's live interest rate; ")
	b.WriteString("never promise loan approval; use TDSR 55%, MSR 30% and current MAS LTV limits when discussing affordability; ")
	b.WriteString("if the customer asks for a person, say a licensed broker will follow up.\n")
	fmt.Fprintf(&b, "Sign off with \"%s\".", p.SignOff)
	return b.String()
}
