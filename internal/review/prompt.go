package review

import (
	"fmt"
	"strings"
)

// ChecklistSystemPrompt is the system prompt for checklist generation.
const ChecklistSystemPrompt = "You are a legal assistant tasked with creating a brief checklist summarizing a contract review. " +
	"The checklist should capture all core aspects of a typical contract review, ensuring that the summary is clear, concise, and comprehensive."

const checklistUserPrompt = `Create a brief checklist to summarize the contracts you have reviewed. Make sure the checklist captures all core aspects of a typical contract review, ensuring that the summary is clear, concise, and comprehensive.

# Checklist Items
- **Parties Involved**: Identify all parties to the contract, including any third parties.
- **Contract Objective**: Summarise the purpose of the contract, including key services or goods provided.
- **Key Dates**: Note start and end dates, as well as important deadlines or milestones.
- **Payment Terms**: Specify any payment schedules, amounts, or reimbursement details.
- **Obligations of Parties**: Outline the major responsibilities of each party and any conditions that must be upheld.
- **Termination Clause**: Summarise the conditions under which the contract can be terminated by either party.
- **Liability and Indemnity**: Note any clauses related to liability limits, indemnity, or insurance obligations.
- **Confidentiality**: Identify any clauses dealing with confidentiality or non-disclosure agreements.
- **Governing Law & Jurisdiction**: Specify which country's law applies and which courts have jurisdiction.
- **Penalty & Breach**: Note any penalties for breaches of contract and the remedies available to the non-breaching party.
- **Dispute Resolution**: Summarise the methods prescribed for dispute resolution (e.g., mediation, arbitration).
- **Exclusivity**: Check if any clauses give one party exclusive rights or restrict dealings outside of the contract.
- **Amendment Process**: State how amendments to the contract can be made and who needs to approve them.

# Output Format
The output should be a brief checklist that is no more than 250 words. Each item should be clear and allow the reviewer to quickly note significant clauses, obligations, or potential concerns. Use bullet points and categorise them logically. Avoid excessive details; focus instead on summarising key aspects.

# Notes
Ensure the checklist covers both general and specific concerns that are commonly present in contracts. This checklist is intended to guide reviewers to ensure they don't overlook any significant aspect of a contract.

Based on the contract details and the identified risky clauses, generate the checklist as specified.`

const batchInstructions = `For each clause, if you identify any risks, provide the following details in a JSON object within a JSON array:
- "clause_key": the clause key.
- "risk_level": an integer from 1 to 3 indicating the risk level.
- "risk_type": one of the following categories: Compliance, Financial, Operational, Strategic, Reputational, Legal.
- "risk_factor": one of the following factors: Legal, Financial, Operational.
- "title": a brief title summarizing the risk.
- "concerns": a brief explanation of the risks.
- "recommendations": how to modify the clause to reduce risk.

If a clause has no identified risks (risk_level 0), you can exclude it from the output.
Provide the output strictly as a JSON array of objects without any code block markers, markdown formatting, or additional text.
Ensure that all double quotes within string values are properly escaped with a backslash (e.g., \"Recipient's rights\").
Do not escape single quotes.

Example Output:
[
    {
        "clause_key": "clause-1",
        "risk_level": 2,
        "risk_type": "Compliance",
        "risk_factor": "Legal",
        "title": "Ambiguity in Purpose of Confidential Information Disclosure",
        "concerns": "The clause lacks specificity in defining the Purpose for disclosing Confidential Information, which may lead to misunderstandings or misuse of the information.",
        "recommendations": "Specify the exact purpose for disclosing Confidential Information to ensure clarity and alignment between the parties."
    }
]`

// BuildBatchPrompt constructs the user prompt for one batch of clauses.
func BuildBatchPrompt(clauses []Clause) string {
	var b strings.Builder
	b.WriteString("Analyze the following contract clauses:\n\n")
	for i, c := range clauses {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Clause %d (Key: %s):\n%s\n", i+1, c.Key, c.Content)
	}
	b.WriteString("\n\n")
	b.WriteString(batchInstructions)
	return b.String()
}

// BuildChecklistPrompt constructs the checklist user prompt, listing the
// titles of the risky clauses found.
func BuildChecklistPrompt(findings []RiskyClause) string {
	if len(findings) == 0 {
		return checklistUserPrompt
	}
	var b strings.Builder
	b.WriteString(checklistUserPrompt)
	b.WriteString("\n\nIdentified risky clauses:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s, risk level %d)\n", f.Title, f.Key, f.RiskLevel)
	}
	return strings.TrimRight(b.String(), "\n")
}
