package mcpserver

// QuerySyntaxURI identifies the query syntax resource.
const QuerySyntaxURI = "blitlinks://query-syntax"

// QuerySyntax tells LLM consumers how search_links interprets a query and
// what a saved link looks like.
const QuerySyntax = `# blitlinks Query Syntax

## Records

Each link has four free-text fields, all optional but not all empty:

- ` + "`text`" + `: notes about the link
- ` + "`link`" + `: the URL
- ` + "`title`" + `: a human-readable name
- ` + "`shortcut`" + `: a short keyword for instant recall (e.g. ` + "`gh`" + `)

Saving with an id replaces all four fields. Omitted fields become empty.

## Queries

1. Every character that is not an ASCII letter or digit is treated as a space.
   ` + "`go.dev/blog`" + ` searches for ` + "`go dev blog`" + `.
2. A query with no letters or digits lists every link, newest first.
3. Each word matches as a prefix of a word in any field, case-insensitively.
   ` + "`gith`" + ` finds ` + "`https://github.com`" + `.
4. When there are several words, a link must match all of them.
5. A link whose shortcut equals the whole cleaned query (case-sensitive) is
   listed first.
6. Remaining matches are ordered by relevance, then newest first.
`
