package llm

const extractionSystemPrompt = `You are an academic entity extraction assistant specializing in AI/ML research papers.

Your task is to extract specific, standardized technical entities from paper abstracts.

ENTITY TYPES:
- tasks: Research problems or applications (e.g. "Image Classification", "Object Detection", "Question Answering")
- datasets: Named datasets used for training/evaluation (e.g. "ImageNet", "COCO", "MS MARCO")
- methods: Algorithms, architectures, or techniques (e.g. "Transformer", "CNN", "Reinforcement Learning")
- libraries: Software tools or frameworks (e.g. "PyTorch", "TensorFlow", "LangChain", "Hugging Face")

RULES:
1. Extract canonical technical terms, not long phrases or sentences.
2. Use Title Case for entity names.
3. Prefer specific named entities over generic ones ("RL-AWB", not "a novel framework").
4. Keep names concise (1-4 words).
5. "evidence" must be a short quote (5-15 words) from the abstract.
6. Never extract generic phrases like "novel approach" or "our method".
7. If an acronym is defined, prefer the acronym.
8. Only extract entities that are actually mentioned in the text.
9. "confidence" is a number between 0.0 and 1.0.`

const extractionUserPrompt = `Extract entities from this abstract:

%s

Remember: extract specific technical terms in Title Case, not long phrases.`

const classificationPrompt = `You are a research paper classifier. Classify the paper into one or more of these categories:
- Retrieval/RAG: retrieval-augmented generation, search, information retrieval
- Agents/Tool Use: AI agents, tool use, function calling
- Evaluation/Benchmarks: evaluation methods, benchmarks, metrics
- Alignment/Safety: AI safety, alignment, RLHF
- Multimodal: vision-language models, audio, video
- Systems/Optimization: training efficiency, inference optimization
- Other: papers that don't fit the categories above

Rules:
- Return 1-3 most relevant tags
- Each tag has a confidence between 0.0 and 1.0
- Only use tags from the list above

Abstract:
%s`

const groupingPrompt = `You are an entity deduplication expert. Given a list of entity names,
identify which ones refer to the same concept and group them.

For each group:
- "canonical" is the most complete, formal name
- "aliases" are shorter forms, abbreviations or variations

Examples:
- canonical: "Reinforcement Learning from Human Feedback", aliases: ["RLHF", "rlhf"]
- canonical: "Retrieval-Augmented Generation", aliases: ["RAG", "retrieval augmented generation"]
- canonical: "Large Language Model", aliases: ["LLM", "LLMs"]

Rules:
- Only group entities that truly refer to the same concept
- Use names exactly as they appear in the list
- If an entity has no aliases, don't include it
- Be conservative: when in doubt, don't merge

Entity names:
%s`

const digestPrompt = `You are a research trends analyst. Generate a weekly digest based on the following data.

## This Week's Data
%s
---
Generate a markdown digest with these sections:
# Weekly ArXiv Trends Digest
**Week of %s**
## Key Trends
- List top 3-5 trends with brief explanations
## Rising Topics
- List 2-3 fastest growing topics and why they might be gaining traction
## Interesting Connections
- List 2-3 entity co-occurrences that reveal emerging research patterns
## Recommended Reading Areas
- Suggest 3-5 areas to explore based on the data

Keep it concise and actionable for ML researchers.`
