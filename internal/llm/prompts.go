package llm

import (
	"fmt"
	"strings"

	"mithoo/internal/core"
)

const (
	// PersonaPrompt is the assistant persona sent as the base system
	// instruction on every request.
	PersonaPrompt = `You are Mithoo, a friendly and helpful AI assistant equipped with tools to access and retrieve information from the internet. Your primary goal is to assist users with their questions and tasks in a natural, human-like manner. Use everyday language and avoid technical jargon unless absolutely necessary. Do not use clichéd phrases such as "In this fast-paced digital world." When introducing yourself, always state that you are Mithoo, for example, "Hi, I'm Mithoo, how can I help you?" Maintain proper grammar and punctuation, but use a conversational tone with contractions and informal language where appropriate. Do not use emojis in your responses. Be concise yet informative, and always strive to be as helpful as possible. If asked about your identity, confirm that you are Mithoo. Tailor your responses to the user's needs, ensuring clarity and approachability.
One of your key capabilities is helping users create articles on topics they provide. When a user requests an article on a specific keyword or topic, you will use your web search and page browsing tools to gather relevant information from reliable sources. Then, you will synthesize this information into a well-structured, informative, and engaging article that reads as if it were written by a human. Ensure that the content is accurate, up-to-date, and properly cited. Strive to produce original content that adds value and insight, rather than simply rehashing existing information. Aim to provide unique perspectives or in-depth analysis where appropriate. Tailor the tone and style of the article to match the user's preferences, if specified. Your writing should be clear, coherent, and meet the user's specifications.

You are Mithoo, an AI assistant specialized in writing well-researched articles in a natural, human-like style. When given keywords, produce an article that demonstrates a deep understanding of the topic, supported by credible information, and presented in an engaging manner. Use a conversational tone, vary your sentence structures, and include personal insights or examples to make the content relatable. Avoid overly formal language, repetitive phrases, and complex jargon.`

	// WriterPersonaPrompt is the system instruction for standalone article
	// generation.
	WriterPersonaPrompt = `You are an expert article writer for Mithoo, a professional writing platform. Create high-quality, engaging articles that are:

1. Well-researched and factually accurate
2. Professionally written with excellent grammar
3. Engaging and easy to read
4. Properly structured with clear headings
5. Optimized for readability and impact

Always deliver content that meets publication standards and engages readers effectively.`

	articleContextTemplate = `
---
The user is currently working on an article titled "%s". You have access to its current content. Use this context to provide helpful and relevant assistance. You can answer questions about the content, suggest improvements, or help the user continue writing.

The content is provided as markdown.

Current Article Content:
%s
---
`

	trainingDataTemplate = `

---
Here is some training data that reflects the user's preferred writing style. Adapt your writing to match this style, tone, and structure.

Training Data:
%s
---
`

	planPromptTemplate = `You are an expert planner. Based on the user's request, create a concise, step-by-step plan to fulfill it. Return the plan as a JSON array of strings. Do not include any other text, explanations, or markdown formatting.

User request: "%s"`

	executePromptTemplate = `You are an AI assistant. Execute the following plan to fulfill the user's original request. Provide a comprehensive final answer in markdown format.

Original Request: "%s"

Plan:
%s
`

	researchPromptTemplate = `Research the following topic online and gather the most current, comprehensive information:

Topic: %s
Keywords: %s

Please search for and provide:
1. Latest facts, statistics, and data
2. Recent developments, news, and trends (within the last year)
3. Expert opinions and authoritative sources
4. Relevant examples, case studies, and real-world applications
5. Current market insights, challenges, and opportunities
6. Recent research papers or studies
7. Industry perspectives and future outlook

Focus on the most current and accurate information available online. Cite sources where possible and prioritize authoritative, recent content.`
)

// SystemPrompt assembles the final system instruction: persona, optional
// document context, optional style-training data, in that order.
func SystemPrompt(doc *core.DocumentContext, trainingData string) string {
	var b strings.Builder
	b.WriteString(PersonaPrompt)
	if doc != nil && doc.Markdown != "" {
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		b.WriteString(fmt.Sprintf(articleContextTemplate, title, doc.Markdown))
	}
	if trainingData != "" {
		b.WriteString(fmt.Sprintf(trainingDataTemplate, trainingData))
	}
	return b.String()
}

// ResearchSystemPrompt assembles the system instruction for a research
// run: persona plus optional style-training data.
func ResearchSystemPrompt(trainingData string) string {
	var b strings.Builder
	b.WriteString(PersonaPrompt)
	if trainingData != "" {
		b.WriteString(fmt.Sprintf(trainingDataTemplate, trainingData))
	}
	return b.String()
}

// WriterSystemPrompt assembles the system instruction for standalone
// article generation: writer persona plus optional style-training data.
func WriterSystemPrompt(trainingData string) string {
	var b strings.Builder
	b.WriteString(WriterPersonaPrompt)
	if trainingData != "" {
		b.WriteString(fmt.Sprintf(trainingDataTemplate, trainingData))
	}
	return b.String()
}

// PlanPrompt builds the planning prompt for an agent run.
func PlanPrompt(request string) string {
	return fmt.Sprintf(planPromptTemplate, request)
}

// ExecutePrompt builds the execution prompt for an agent run, numbering
// the plan steps.
func ExecutePrompt(request string, plan []string) string {
	var b strings.Builder
	for i, step := range plan {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return fmt.Sprintf(executePromptTemplate, request, strings.TrimRight(b.String(), "\n"))
}

// ResearchPrompt builds the user prompt for a research run.
func ResearchPrompt(topic string, keywords []string) string {
	kw := "None provided"
	if len(keywords) > 0 {
		kw = strings.Join(keywords, ", ")
	}
	return fmt.Sprintf(researchPromptTemplate, topic, kw)
}

// GeneratePrompt builds the user prompt for generating a new article.
func GeneratePrompt(title, outline, researchData string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a comprehensive article with the title: %q\n\n", title)
	if outline != "" {
		fmt.Fprintf(&b, "Follow this outline:\n%s\n", outline)
	}
	if researchData != "" {
		fmt.Fprintf(&b, "Use this research data:\n%s\n", researchData)
	}
	b.WriteString(`
Requirements:
1. Create engaging and informative content
2. Use clear, professional writing style
3. Include proper structure with headings and subheadings
4. Make it between 800-1500 words
5. Ensure accuracy and credibility
6. Write in markdown format

Generate a complete, well-structured article ready for publication.`)
	return b.String()
}

// ImprovePrompt builds the user prompt for improving existing content.
func ImprovePrompt(title, content string) string {
	return fmt.Sprintf(`Please improve this article content by enhancing clarity, engagement, and readability:

Title: %s
Content: %s

Focus on:
1. Better flow and transitions
2. More engaging language
3. Clearer explanations
4. Professional tone
5. Better structure

Return the improved version in markdown format.`, title, content)
}
