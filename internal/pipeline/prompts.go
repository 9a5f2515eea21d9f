package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"pivotlp/internal/core"
)

// analyzePrompt builds the URL-analysis prompt. When digest is empty the
// model is told to infer from the URL alone and to mark inferred values.
func analyzePrompt(url, digest string) string {
	var b strings.Builder

	b.WriteString("Analyze the following service and extract structured information as JSON.\n\n")
	fmt.Fprintf(&b, "URL: %s\n\n", url)

	if digest != "" {
		b.WriteString("Content extracted from the page:\n")
		b.WriteString(digest)
		b.WriteString("\nPrefer the literal extracted content above over guesses.\n\n")
	} else {
		b.WriteString("The page content could not be fetched. Infer the fields from the URL and any knowledge of the service, and prefix every inferred value with \"(inferred)\".\n\n")
	}

	b.WriteString(`Return JSON in exactly this shape (JSON only, no other text):

{
  "serviceName": "name of the service",
  "targetCustomer": "target customer (e.g. small-business owners, freelancers)",
  "valueProposition": "the value delivered, in one line",
  "features": ["feature 1", "feature 2", "feature 3"],
  "customerAnalysis": {
    "strengths": ["customer-segment strength 1", "strength 2"],
    "challenges": ["challenge 1", "challenge 2"]
  },
  "serviceAnalysis": {
    "strengths": ["service/technology strength 1", "strength 2"],
    "challenges": ["challenge 1", "challenge 2"]
  }
}`)
	return b.String()
}

// pivotPrompt builds the pivot-generation prompt: 6 concepts, 2 for each of
// the 3 fixed categories.
func pivotPrompt(summary core.ServiceSummary) string {
	var b strings.Builder

	b.WriteString("Based on the service information below, generate 6 differentiated pivot concepts, 2 for each of 3 categories.\n\n")

	b.WriteString("Original service:\n")
	fmt.Fprintf(&b, "- Name: %s\n", summary.ServiceName)
	fmt.Fprintf(&b, "- Category: %s\n", orUnknown(summary.Category))
	fmt.Fprintf(&b, "- Features: %s\n", strings.Join(summary.Features, ", "))
	fmt.Fprintf(&b, "- Target customer: %s\n", summary.TargetCustomer)
	fmt.Fprintf(&b, "- Value proposition: %s\n\n", summary.ValueProposition)

	writeAnalysis(&b, "Customer-side", summary.CustomerAnalysis)
	writeAnalysis(&b, "Service-side", summary.ServiceAnalysis)

	b.WriteString(`The 3 pivot categories:

Category "customer-pivot" (generate 2): keep the core capability and technology, approach a different customer segment. Examples: B2C to B2B, general audience to a specific industry, individuals to companies, younger to older users.

Category "technology-pivot" (generate 2): keep the target customer, change the problem solved, the value delivered, or the technology used. Examples: narrowing features, expanding features, solving an adjacent problem, a different technical approach.

Category "radical-pivot" (generate 2): keep only the core concept or brand image and change direction boldly. Examples: changing the delivery form (SaaS to marketplace), entering an entirely different market, switching the business model.

Requirements:
- Each category must take a clearly different approach
- Consider feasibility and business impact
- Give concrete, persuasive differentiators

Return JSON in exactly this shape, with 6 entries and the category values shown above (JSON only, no other text):

{
  "pivots": [
    {
      "category": "customer-pivot",
      "title": "concept title",
      "differentiators": ["differentiator 1", "differentiator 2", "differentiator 3"],
      "targetAudience": "intended audience",
      "difference": "how this differs from the original service"
    }
  ]
}`)
	return b.String()
}

func writeAnalysis(b *strings.Builder, label string, a core.Analysis) {
	if len(a.Strengths) == 0 && len(a.Challenges) == 0 {
		return
	}
	fmt.Fprintf(b, "%s strengths:\n- %s\n", label, strings.Join(a.Strengths, "\n- "))
	fmt.Fprintf(b, "%s challenges:\n- %s\n\n", label, strings.Join(a.Challenges, "\n- "))
}

// generatePrompt builds the landing-page content prompt for the selected
// pivot concept. The copy requirements push for quantified, persuasive text.
func generatePrompt(serviceName, targetCustomer string, pivot core.PivotConcept) string {
	pivotJSON, _ := json.MarshalIndent(pivot, "", "  ")

	var b strings.Builder
	b.WriteString("You are a top marketer and copywriter. Generate high-conversion landing page content.\n\n")

	b.WriteString("Basics:\n")
	fmt.Fprintf(&b, "Service name: %s\n", serviceName)
	fmt.Fprintf(&b, "Target customer: %s\n\n", targetCustomer)

	b.WriteString("Selected pivot concept:\n")
	b.Write(pivotJSON)
	b.WriteString("\n\n")

	b.WriteString(`Requirements:
1. Always include concrete numbers (time saved, cost reduced, success rates)
2. Use emotionally resonant language (anxiety, then hope, then a path to success)
3. Use cases tell realistic stories with fictional company and person names
4. Before/after shows dramatic quantified change (50%+ improvement)
5. Strengths explain why competitors cannot do the same
6. Testimonials are credible and include specific result figures
7. The CTA conveys urgency and prompts action
8. Every description states what value the reader gains

Return JSON in exactly this shape (JSON only, no other text):

{
  "serviceName": "service name",
  "catchphrase": "powerful emotional headline, under 60 characters",
  "subCatchphrase": "subhead with a concrete result, e.g. cut workload 50% within 3 days",
  "problems": [
    "concrete problem 1 with numbers, e.g. 60 hours a month lost to manual work",
    "concrete problem 2 with emotional pain",
    "concrete problem 3 with monetary or time loss"
  ],
  "solution": "around 200 characters describing how the problems are solved and what future awaits",
  "useCases": [
    {
      "title": "case study title including the result",
      "persona": "fictional company, department, role and person name",
      "situation": "concrete pre-adoption situation with numbers",
      "result": "dramatic post-adoption result with before/after numbers",
      "quote": "the person's own words, 50-80 characters, emotion plus result"
    }
  ],
  "features": [
    {
      "title": "feature name",
      "description": "how the feature works",
      "benefit": "the concrete, quantified result this feature delivers"
    }
  ],
  "beforeAfter": {
    "before": ["pre-adoption pain 1 with concrete time/cost", "pain 2 with opportunity loss", "pain 3 with mental burden"],
    "after": ["post-adoption gain 1 with dramatic numbers", "gain 2 with monetary result", "gain 3 with peace of mind"]
  },
  "strengths": [
    "differentiator 1 stating why competitors cannot match it",
    "differentiator 2 with a concrete advantage",
    "differentiator 3 with a unique capability"
  ],
  "testimonials": [
    {
      "name": "fictional person with role and company",
      "company": "company size / industry",
      "content": "specific words covering the decision, the experience and the result, 100-150 characters",
      "result": "headline result figure",
      "rating": 5
    }
  ],
  "dailyWorkflow": [
    {
      "time": "morning (8:00)",
      "task": "concrete task and its effect",
      "duration": "5 minutes",
      "improvement": "down from 30 minutes"
    }
  ],
  "steps": [
    {
      "title": "Step 1: sign up in 30 seconds",
      "description": "email only, no credit card, start immediately"
    },
    {
      "title": "Step 2: automatic setup in 3 minutes",
      "description": "optimal settings suggested automatically, no expertise needed"
    },
    {
      "title": "Step 3: results on day one",
      "description": "feel the efficiency gain from the first day"
    }
  ],
  "ctaText": "urgency-driven call to action, e.g. start free now, 14 days on us",
  "ctaSubtext": "friction remover, e.g. no credit card / ready in 30 seconds"
}

Provide 3 entries each for problems, useCases, features, strengths, testimonials, dailyWorkflow and steps.`)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
