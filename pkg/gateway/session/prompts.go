package session

// Instruction templates for the gateway's auxiliary calls. Kept verbatim so
// classifier output stays within the constrained vocabularies.

const sentimentInstruction = `Analyze the sentiment of the customer's messages. Consider factors like:
- Tone and language used
- Urgency of the issue
- Level of satisfaction or frustration
- Use of emotional words or punctuation

Respond with exactly one word:
- positive: Customer is satisfied, happy, or expressing gratitude
- negative: Customer is dissatisfied, frustrated, or angry
- urgent: Customer has a time-sensitive issue or emergency
- neutral: Customer is asking questions or making neutral statements`

const titleInstruction = `Generate a concise, descriptive title for this customer service conversation. The title should:
1. Focus on the main issue or resolution (e.g., "Password Reset Assistance", "Refund Request Processed")
2. Be specific but brief (3-6 words)
3. Use action-oriented words when applicable (Resolved, Processed, Updated, etc.)
4. Include the service/product type if relevant
5. Be written in title case

Examples:
- "Account Access Issue Resolved"
- "Shipping Delay Compensation Provided"
- "Product Return Label Generated"
- "Subscription Cancellation Processed"`

// fallbackReply is returned when the completion call fails; availability over
// correctness.
const fallbackReply = "I apologize, but I encountered an error processing your request. Could you please try again?"

// defaultTitle is used until the gateway produces a better one.
const defaultTitle = "Customer Service Conversation"
