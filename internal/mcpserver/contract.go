package mcpserver

// DocumentFormat describes the Markdown document layout that LLM consumers
// should follow when writing documents into the bucket.
const DocumentFormat = `# Bucketpress Document Format

Documents are Markdown files stored in the bucket. Folders are virtual: a
folder exists while any object lives under its prefix.

## Structure

` + "```" + `markdown
---
title: Human-readable title         # used for display and search
date: 2025-01-15                    # ISO-8601 date
author: Jane Doe
avatar: https://example.com/jane.png
description: One sentence summary
tags:                                # YAML list, or a single string
  - release
category: news
readingTime: 4 min
---

Body text in standard Markdown.

![Diagram](./images/diagram.png)
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the opening ` + "`" + `---` + "`" + ` must be
   the very first line and the block ends at the next ` + "`" + `---` + "`" + ` line.
2. **Unknown frontmatter keys are kept** and survive a save unchanged.
3. **Title** comes from ` + "`" + `title` + "`" + `, otherwise from the first ` + "`" + `# ` + "`" + ` heading.
4. **Tags** come from ` + "`" + `tags` + "`" + ` plus inline ` + "`" + `#tag` + "`" + ` words in the body.
5. **Paths** use forward slashes and segments of letters, digits, spaces,
   dashes, underscores and dots. Documents end with ` + "`" + `.md` + "`" + `.
6. **Saving writes the text verbatim.** Nothing is reformatted.

## Images

- Reference images relative to the document with a leading ` + "`" + `./` + "`" + `,
  for example ` + "`" + `![alt](./images/photo.png)` + "`" + ` or ` + "`" + `![alt](./../shared/logo.svg)` + "`" + `.
- Relative references are rewritten to public bucket URLs when the document
  is displayed. References that climb above the bucket root are left as is.
- Upload images with the ` + "`" + `upload_image` + "`" + ` tool. It stores the file in
  the given folder and returns a ready-made relative reference.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Publishing

Call ` + "`" + `publish` + "`" + ` after a batch of changes. Publishing is rate limited: a
request made during the cooldown does nothing and reports the remaining wait.
`
