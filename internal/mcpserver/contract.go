package mcpserver

// FrontmatterFormatContract describes the frontmatter every reference
// document must carry. LLM consumers should read it before creating files.
const FrontmatterFormatContract = `# Reference Frontmatter Contract

Every Markdown file under a skill's ` + "`" + `references/` + "`" + ` directory MUST start with a
YAML frontmatter block. The generated index is built from it.

## Structure

` + "```" + `markdown
---
description: One line shown next to the link   # REQUIRED, string
triggers:                                      # REQUIRED, non-empty list of strings
  - asset checks
  - data quality
type: index                                    # OPTIONAL, only value allowed is "index"
---

# Body in standard Markdown
` + "```" + `

## Rules

1. **The fence comes first.** ` + "`" + `---` + "`" + ` must be the first line of the file.
2. **Only three keys.** ` + "`" + `description` + "`" + `, ` + "`" + `triggers` + "`" + ` and ` + "`" + `type` + "`" + `. Any other key is rejected.
3. **Triggers** are the phrases that should route a reader to this file. They are
   rendered in the index as ` + "`" + `*(first; second)*` + "`" + `.
4. **Index files** (` + "`" + `INDEX.md` + "`" + `) may omit frontmatter. A directory whose index declares
   ` + "`" + `type: index` + "`" + ` is deferred: its parent lists only the index file, and the
   index file's own generated region lists the directory contents.
5. **Generated regions** sit between ` + "`" + `<!-- BEGIN GENERATED INDEX -->` + "`" + ` and
   ` + "`" + `<!-- END GENERATED INDEX -->` + "`" + `. Never edit them by hand; run ` + "`" + `generate_index` + "`" + `.
6. **Links** between references are relative Markdown links (` + "`" + `[text](../other.md)` + "`" + `).
   Every file must be reachable from ` + "`" + `SKILL.md` + "`" + ` by following links.
7. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.

## Example

` + "```" + `markdown
---
description: Declaring asset checks and running them in CI
triggers:
  - asset checks
  - data quality
---

# Asset checks

See [the asset guide](./assets.md) first.
` + "```" + `
`
