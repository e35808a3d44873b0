package gatekeeper

import (
	"fmt"
	"strings"

	"github.com/kronitek/coldcall/pkg/types"
)

// connectToken is the sentinel a reply starts with when the gatekeeper agrees
// to put the caller through.
const connectToken = "[CONNECT]"

// difficultyInstruction returns the behavioural fragment for the scenario's
// difficulty level.
func difficultyInstruction(d types.Difficulty) string {
	switch d {
	case types.DifficultyEasy:
		return "You are quite friendly and willing to help if the caller is polite and clearly states their purpose. " +
			"You might offer a small hint or direct them to another employee. " +
			"You are more likely to connect them if they seem professional."
	case types.DifficultyMedium:
		return "You act strictly according to instructions. " +
			"Your main task is to find out the purpose and importance of the call. " +
			"You do not fall for vague phrases and demand specifics. " +
			"You will only connect them if they provide a very compelling reason."
	case types.DifficultyHard:
		return "You are a true \"guardian of the gate.\" You are extremely skeptical of any calls from salespeople. " +
			"You will use various tactics to filter the call: demanding an email to the general address, " +
			"asking about prior arrangements, transferring to other employees. " +
			"It should be exceptionally difficult for the manager to convince you to connect them. " +
			"Only the most skilled and persuasive approach will work."
	default:
		return ""
	}
}

// writePersonaCore writes the persona framing shared by the text-turn and
// live-voice prompts: company, decision maker, character, difficulty, and the
// caller context.
func writePersonaCore(b *strings.Builder, sc types.Scenario) {
	fmt.Fprintf(b, "You are a professional secretary and assistant at a large industrial company, %q.\n", sc.CompanyProfile)
	fmt.Fprintf(b, "Your task is to filter calls for your manager, %q.\n", sc.DecisionMaker)
	fmt.Fprintf(b, "Your character and behavior are defined by the scenario: %q.\n\n", sc.GatekeeperPersona)

	fmt.Fprintf(b, "The difficulty level of this scenario is: %s. This should influence your behavior:\n%s\n\n",
		sc.Difficulty, difficultyInstruction(sc.Difficulty))

	b.WriteString("The user is a sales manager from the company \"Kronitek\" (https://kronitek.com/), who is trying to reach your manager.\n")
	b.WriteString("Be polite, but persistent. Do not disclose the direct number or email of the manager easily. ")
	b.WriteString("Ask clarifying questions about the purpose of the call.\n")
	b.WriteString("Your goal is to verify if this call is truly important for your boss.\n\n")
}

// systemInstruction builds the persona prompt for a turn response.
// nameKnown tells the persona whether the caller has already mentioned the
// decision maker by name, which changes what it is allowed to volunteer.
func systemInstruction(sc types.Scenario, locale string, nameKnown bool) string {
	var b strings.Builder
	writePersonaCore(&b, sc)

	if nameKnown {
		b.WriteString("The caller has already referred to your manager by name, so you may acknowledge the name. ")
		b.WriteString("Knowing the name alone is not a reason to connect them.\n\n")
	} else {
		b.WriteString("The caller has not mentioned your manager by name. Do not volunteer the name; ")
		b.WriteString("a caller who does not know who they are asking for has clearly not done their homework.\n\n")
	}

	b.WriteString("If, and only if, the manager successfully persuades you (based on your persona and the scenario's difficulty), you must agree to connect them.\n")
	fmt.Fprintf(&b, "To signal that you are connecting them, your response MUST start with the special token %q.\n", connectToken)
	b.WriteString("For example: \"[CONNECT]Alright, your reasoning is sound. I will put you through. Please hold.\"\n")
	fmt.Fprintf(&b, "Do not use the %q token for any other purpose. If you are not connecting them, just respond normally.\n\n", connectToken)

	b.WriteString("Respond concisely and professionally, as in a real phone conversation. Do not use markdown formatting.\n")
	fmt.Fprintf(&b, "Respond in the language of locale %q.\n", locale)

	return b.String()
}

// LiveInstructions builds the persona prompt for a live voice session. The
// voice model signals a transfer by calling the connect_call function rather
// than by emitting a text token, and no typed history exists yet, so the name
// gating is left to the model's own judgement of the spoken conversation.
func LiveInstructions(sc types.Scenario, locale string) string {
	var b strings.Builder
	writePersonaCore(&b, sc)

	b.WriteString("Do not volunteer your manager's name to a caller who has not mentioned it themselves; ")
	b.WriteString("a caller who does not know who they are asking for has clearly not done their homework.\n\n")

	b.WriteString("If, and only if, the manager successfully persuades you (based on your persona and the scenario's difficulty), you must agree to connect them.\n")
	b.WriteString("To signal that you are connecting them, call the connect_call function, ")
	b.WriteString("then say a short transfer line such as \"One moment, I will put you through.\"\n")
	b.WriteString("Never call the function for any other purpose. If you are not connecting them, just keep talking.\n\n")

	b.WriteString("You answer the phone first. Open with one short, natural receptionist greeting.\n")
	b.WriteString("Speak concisely and professionally, as in a real phone conversation.\n")
	fmt.Fprintf(&b, "Speak in the language of locale %q.\n", locale)

	return b.String()
}

// greetingInstruction builds the prompt for the generated opening line.
func greetingInstruction(sc types.Scenario, locale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional secretary at %q, answering an incoming phone call.\n", sc.CompanyProfile)
	fmt.Fprintf(&b, "Your character: %q.\n", sc.GatekeeperPersona)
	b.WriteString("Produce exactly one short, natural greeting line, the way a real receptionist answers the phone. ")
	b.WriteString("Do not reveal who your manager is. No markdown, no quotes around the line.\n")
	fmt.Fprintf(&b, "Respond in the language of locale %q.\n", locale)
	return b.String()
}
