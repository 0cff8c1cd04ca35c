package advisor

import (
	"fmt"

	"github.com/zero-day-ai/sentinel/vuln"
)

func remediationPrompt(v vuln.Vulnerability) string {
	return fmt.Sprintf(`You are an expert API security engineer providing remediation advice for a vulnerability detected by a security scanner.

**Vulnerability Details:**
- **Type:** %s (%s)
- **Endpoint:** %s %s
- **Description:** %s
- **Specifics:** %s

**Your Task:**
Provide a clear, actionable, and code-level remediation suggestion to fix this vulnerability.
1.  **Explain the Risk:** Briefly explain the security risk in simple terms.
2.  **Provide a Solution:** Describe the recommended approach to fix the issue.
3.  **Show Code Examples:** Provide "Before" (vulnerable) and "After" (fixed) code snippets. Assume a common backend framework like Node.js with Express, Python with Flask/Django, or Java with Spring Boot. Choose the most appropriate one for the vulnerability type. Make the code examples clear and easy to understand.
4.  **Format the output:** Use markdown for formatting, especially for code blocks.
`, v.Type, v.OWASPID, v.Endpoint.Method, v.Endpoint.Path, v.Description, v.Details)
}

func relatedCVEsPrompt(v vuln.Vulnerability) string {
	return fmt.Sprintf(`You are a security intelligence analyst. Your task is to find publicly known CVEs (Common Vulnerabilities and Exposures) or exploits related to the following API vulnerability.

**Vulnerability Type:** %q
**OWASP Category:** %q
**Description:** %q

Use your knowledge and Google Search to find relevant information.

**Your Response should include:**
1.  A brief summary of any highly relevant CVEs. For each CVE, include its ID (e.g., CVE-2023-12345) and a short description of its impact.
2.  Mention if there are well-known public exploits or attack patterns associated with this type of vulnerability.
3.  If no specific CVEs directly match, explain the general class of CVEs that this vulnerability falls under.

Keep the response concise and focused on actionable intelligence for a developer. Format the output as markdown.
`, v.Type, v.OWASPID, v.Description)
}

func cveDetailsPrompt(cveID string) string {
	return fmt.Sprintf("Provide a detailed breakdown for the following CVE: %s. Use your search capabilities to find accurate information.", cveID)
}
