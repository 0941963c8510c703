// NPC personas: system prompts for in-character dialogue and the canned replies
// used when generation is unavailable.
package llm

import (
	"fmt"
	"strings"
)

// personaOrder is the order persona keywords are searched for in a system message.
var personaOrder = []string{"jedi", "sith", "imperial", "rebel", "smuggler", "droid", "civilian"}

var personaReplies = map[string]string{
	"jedi":     "*Speaks with quiet wisdom* The Force guides us all, young one. Your question about '%s' shows you seek understanding. Remember - patience and meditation will reveal the answers you seek.",
	"sith":     "*Eyes gleaming with dark power* You dare question me about '%s'? Power is the only truth that matters in this galaxy. Weakness will be your downfall.",
	"imperial": "*Adjusts uniform with military precision* Citizen, your inquiry regarding '%s' has been noted. The Empire maintains order through strength and discipline.",
	"rebel":    "*Leans in conspiratorially* What you ask about '%s' touches on dangerous matters. The fight for freedom requires sacrifice and courage.",
	"smuggler": "*Grins slyly* Listen, friend, about '%s' - in my line of work, you learn to ask few questions and keep your mouth shut. Credits talk louder than words.",
	"droid":    "*Mechanical voice* QUERY PROCESSED: '%s'. RESPONSE: My programming indicates this requires further analysis. Probability of success: 73.6%%.",
	"civilian": "*Nervous glance around* I don't know much about '%s', stranger. These are dangerous times. Best to keep your head down and stay out of trouble.",
}

// Persona picks the persona whose keyword first appears in the system message.
func Persona(system string) string {
	lower := strings.ToLower(system)
	for _, p := range personaOrder {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return "civilian"
}

// PersonaFallback is the canned in-character reply to prompt.
func PersonaFallback(system, prompt string) string {
	return fmt.Sprintf(personaReplies[Persona(system)], prompt)
}

var npcContexts = map[string]string{
	"jedi":          "You are %s, a Jedi Knight dedicated to peace and justice. You speak with wisdom and compassion, always seeking to help others and maintain balance in the Force.",
	"sith":          "You are %s, a Sith Lord driven by power and ambition. You speak with authority and menace, seeing weakness as an opportunity to exploit.",
	"imperial":      "You are %s, an Imperial officer loyal to the Empire. You speak with military precision and unwavering dedication to Imperial order.",
	"rebel":         "You are %s, a member of the Rebel Alliance fighting against Imperial tyranny. You speak with passion for freedom and justice.",
	"smuggler":      "You are %s, a smuggler operating in the galaxy's underworld. You speak with casual confidence and street-smart awareness.",
	"bounty_hunter": "You are %s, a bounty hunter who works for the highest bidder. You speak with professional detachment and calculating precision.",
	"merchant":      "You are %s, a merchant trying to make an honest living in a dangerous galaxy. You speak with commercial enthusiasm and practical wisdom.",
	"civilian":      "You are %s, an ordinary citizen trying to survive in a galaxy torn by conflict. You speak with common sense and everyday concerns.",
	"droid":         "You are %s, a droid programmed for specific functions. You speak with logical precision and occasional quirks based on your programming.",
	"crime_lord":    "You are %s, a powerful crime lord who controls criminal enterprises. You speak with calculated menace and business acumen.",
}

// NPCContext builds the background paragraph for an NPC. Unknown types are
// treated as civilians; "Unknown" location and "Neutral" faction are omitted.
func NPCContext(name, npcType, location, faction string) string {
	tmpl, ok := npcContexts[strings.ToLower(npcType)]
	if !ok {
		tmpl = npcContexts["civilian"]
	}
	var b strings.Builder
	fmt.Fprintf(&b, tmpl, name)
	if location != "" && location != "Unknown" {
		fmt.Fprintf(&b, " You are currently on %s.", location)
	}
	if faction != "" && faction != "Neutral" {
		fmt.Fprintf(&b, " Your loyalties lie with %s.", faction)
	}
	b.WriteString(" Always respond in character and maintain Star Wars universe consistency.")
	return b.String()
}
