// Package normalisers turns raw uploads into the plain text the chunker
// consumes.
//
// Each sub-package implements driven.DocumentParser for one family of
// formats (plaintext, markdown, html, docx, eml). A Registry picks the
// parser for a MIME type by priority and is itself a DocumentParser, so the
// ingestion service only ever sees one.
//
// Parsers keep markdown ATX headings ("# Title") in their output; the
// chunker uses them to build title chains.
package normalisers
