package export

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
)

// toMarkdown converts a crawled page's raw HTML into markdown. Script,
// style, and noscript subtrees are pruned first so tracking snippets and
// inline CSS never leak into the export.
func toMarkdown(rawHTML string) (string, *ExportError) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", &ExportError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}
	pruneNonContent(root)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertNode(root)
	if err != nil {
		return "", &ExportError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	text := strings.TrimSpace(string(markdown))
	if text == "" {
		return "", &ExportError{
			Message:   "conversion produced no content",
			Retryable: false,
			Cause:     ErrCauseEmptyDocument,
		}
	}
	return text + "\n", nil
}

// pruneNonContent removes script/style/noscript subtrees in place.
func pruneNonContent(node *html.Node) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.ElementNode {
			switch child.Data {
			case "script", "style", "noscript":
				node.RemoveChild(child)
				continue
			}
		}
		pruneNonContent(child)
	}
}

// headingOutline parses the converted markdown and returns its heading
// texts in document order, used as the exported file's section list.
func headingOutline(markdownText string) []string {
	p := parser.New()
	doc := gomarkdown.Parse([]byte(markdownText), p)

	var outline []string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if heading, ok := node.(*ast.Heading); ok && entering {
			text := headingText(heading)
			if text != "" {
				outline = append(outline, text)
			}
		}
		return ast.GoToNext
	})
	return outline
}

func headingText(heading *ast.Heading) string {
	var sb strings.Builder
	ast.WalkFunc(heading, func(node ast.Node, entering bool) ast.WalkStatus {
		if leaf, ok := node.(*ast.Text); ok && entering {
			sb.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(sb.String())
}
