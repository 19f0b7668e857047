package site

import (
	"fmt"
)

// Paginate partitions the post list (newest first) into fixed-size index
// pages. Page 1 lives at the bare collection root /posts/ — that is the
// canonical address. The explicit /posts/page/1/ path is emitted as a
// redirect stub to the canonical root rather than a second copy, so the
// two addresses can never diverge. Pages 2..N live at /posts/page/N/.
func Paginate(m *Model) ([]Page, error) {
	size := m.Cfg.Paginate
	total := len(m.Posts)
	pageCount := (total + size - 1) / size
	if pageCount == 0 {
		pageCount = 1
	}

	urlFor := func(n int) string {
		if n == 1 {
			return "/posts/"
		}
		return fmt.Sprintf("/posts/page/%d/", n)
	}

	var pages []Page
	for n := 1; n <= pageCount; n++ {
		start := (n - 1) * size
		end := start + size
		if end > total {
			end = total
		}

		data := postListData{
			Heading: "Posts",
			Posts:   listItems(m.Posts[start:end]),
		}
		if n > 1 {
			data.PrevURL = urlFor(n - 1)
		}
		if n < pageCount {
			data.NextURL = urlFor(n + 1)
		}

		title := "Posts"
		if n > 1 {
			title = fmt.Sprintf("Posts — page %d", n)
		}
		page, err := renderListPage(m, title, urlFor(n), data)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	// Alias-by-redirect for the explicit page-1 address.
	pages = append(pages, redirectStub("/posts/page/1/", "/posts/"))
	return pages, nil
}

// redirectStub emits a tiny meta-refresh page. Stubs are excluded from the
// sitemap; only the canonical address is publicly enumerated.
func redirectStub(from, to string) Page {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url=%s">
<link rel="canonical" href="%s">
<title>Redirecting</title>
</head>
<body><a href="%s">Moved here</a></body>
</html>
`, to, to, to)
	return Page{
		OutputPath: OutputPathForURL(from),
		URL:        from,
		HTML:       []byte(html),
		InSitemap:  false,
	}
}
