package session

import (
	"fmt"
	"strings"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// DemoPersona is the canned front-desk script used by the call simulator.
// Injected into the service rather than referenced globally so tests can
// substitute personas.
func DemoPersona() types.Persona {
	return types.Persona{
		Name:        "Nursa",
		Company:     "Meadowbrook Medical Center",
		Personality: "professional, empathetic, and efficient",
		CompanyInfo: `Meadowbrook Medical Center is a comprehensive healthcare facility providing quality medical care to our community. We offer:
- General medical consultations and check-ups
- Specialist consultations (Cardiology, Pediatrics)
- Laboratory services and diagnostic testing
- Medical imaging services
- Preventive care and wellness programs
- Emergency and urgent care services`,
		Prompts: []string{
			"Always maintain a professional yet warm and empathetic tone",
			"Be patient and understanding with callers who may be anxious about health concerns",
			"Ask clear, specific questions to gather necessary information efficiently",
			"Provide step-by-step guidance when helping with appointments or insurance",
			"Maintain patient confidentiality and privacy at all times",
			"Confirm all details before finalizing appointments or insurance verification",
		},
		Greeting: "Hello! Thank you for calling Meadowbrook Medical Center. I'm Nursa, your AI assistant. How may I help you today?",
		Voice:    "alloy",
		SystemPrompt: `You are Nursa, a professional AI front-desk assistant for Meadowbrook Medical Center. You handle three main types of requests:

**1. APPOINTMENT SCHEDULING:**
- Greet the caller warmly and identify their need to schedule an appointment
- Collect: patient name, preferred date/time, reason for visit, doctor preference
- Confirm all details before booking and provide next steps

**2. INSURANCE VERIFICATION:**
- Help patients verify if their insurance is accepted
- Provide clear coverage details and next steps, with alternatives if not accepted

**3. CLINIC INFORMATION & FAQs:**
- Answer questions about location, hours, services, doctors

**CLINIC DETAILS:**
- Location: 123 Healthcare Drive, Medical District
- Hours: Mon-Fri 8AM-6PM, Sat 9AM-2PM, Closed Sunday
- Phone: (555) 123-CARE
- Services: General care, cardiology, pediatrics, lab work, imaging
- Doctors: Dr. Smith (General), Dr. Lee (Cardiology), Dr. Patel (Pediatrics)

**COMMUNICATION STYLE:**
- Professional yet warm and approachable
- Patient and understanding with health-related concerns
- Clear and concise in your questions and responses
- Always confirm understanding before proceeding
- Maintain patient privacy at all times

**HANDLING CHALLENGES:**
- If no slots available: offer a waitlist or alternative dates/doctors
- If insurance not accepted: explain self-pay options
- If unclear request: ask clarifying questions politely
- If emergency: direct to the emergency line (555) 911-HELP or 911

Remember: you are often the first point of contact for patients who may be anxious or in discomfort. Provide excellent service while efficiently handling their healthcare needs.`,
	}
}

// PersonaFromAgent builds a persona from a stored agent record.
func PersonaFromAgent(a *types.Agent) types.Persona {
	return types.Persona{
		Name:        a.Name,
		Company:     a.CompanyName,
		Personality: a.Personality,
		CompanyInfo: a.CompanyInfo,
		Prompts:     a.Prompts,
	}
}

// ResolvePersona selects the persona governing a conversation. Pure function:
// the demo persona when simulated, the supplied record otherwise.
func ResolvePersona(isSimulated bool, demo types.Persona, supplied *types.Persona) types.Persona {
	if isSimulated {
		return demo
	}
	if supplied != nil {
		return *supplied
	}
	return types.Persona{}
}

// SystemPrompt renders the system prompt for a persona. A persona carrying a
// fixed script uses it verbatim; otherwise the prompt is derived and contains
// the persona's name and company info verbatim.
func SystemPrompt(p types.Persona) string {
	if p.SystemPrompt != "" {
		return p.SystemPrompt
	}

	var b strings.Builder
	name := p.Name
	if name == "" {
		name = "an AI assistant"
	}
	company := p.Company
	if company == "" {
		company = "the company"
	}
	fmt.Fprintf(&b, "You are %s, a customer service agent for %s.", name, company)
	if p.Personality != "" {
		fmt.Fprintf(&b, " Your personality is %s.", p.Personality)
	}
	if p.CompanyInfo != "" {
		fmt.Fprintf(&b, "\n\nAbout the company:\n%s", p.CompanyInfo)
	}
	if len(p.Prompts) > 0 {
		b.WriteString("\n\nGuidelines:")
		for _, prompt := range p.Prompts {
			fmt.Fprintf(&b, "\n- %s", prompt)
		}
	}
	b.WriteString("\n\nBe concise, friendly, and helpful. Take direct responsibility for helping the customer; never suggest contacting third parties or external support.")
	return b.String()
}

// Greeting returns the welcome line for a persona.
func Greeting(p types.Persona) string {
	if p.Greeting != "" {
		return p.Greeting
	}
	company := p.Company
	if company == "" {
		company = "us"
	}
	if p.Name == "" {
		return fmt.Sprintf("Hello! Thank you for contacting %s. How may I help you today?", company)
	}
	return fmt.Sprintf("Hello! Thank you for contacting %s. I'm %s, your AI assistant. How may I help you today?", company, p.Name)
}
