package memory

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"browser-harness/internal/domain/entity"
)

// Page scripts one page from tests and On handlers. Mutations do not load iframes
// added after navigation.
type Page struct {
	b  *Browser
	id entity.PageID
}

func (p *Page) ID() entity.PageID {
	return p.id
}

func (p *Page) URL() string {
	info, _ := p.b.PageInfo(context.Background(), p.id)
	return info.URL
}

func (p *Page) Title() string {
	info, _ := p.b.PageInfo(context.Background(), p.id)
	return info.Title
}

func (p *Page) SetTitle(title string) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if pg, err := p.b.livePage(p.id); err == nil {
		pg.title = title
	}
}

func (p *Page) Navigate(url string) error {
	return p.b.Navigate(context.Background(), p.id, url)
}

// OpenPopup opens url in a new page of the same context, as window.open does.
func (p *Page) OpenPopup(url string) (entity.PageID, error) {
	return p.b.openPopup(p.id, url)
}

func (p *Page) Close() error {
	return p.b.ClosePage(context.Background(), p.id)
}

// Files returns the files last set on the file input matching selector.
func (p *Page) Files(selector string) []string {
	var out []string
	_ = p.Mutate(func(doc *goquery.Document) {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			return
		}
		pg := p.b.pages[p.id]
		out = append(out, pg.files[sel.Get(0)]...)
	})
	return out
}

// Mutate runs fn against the main document under the browser lock.
func (p *Page) Mutate(fn func(doc *goquery.Document)) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	pg, err := p.b.livePage(p.id)
	if err != nil {
		return err
	}
	fn(goquery.NewDocumentFromNode(pg.doc))
	return nil
}

func (p *Page) Value(selector string) string {
	var v string
	_ = p.Mutate(func(doc *goquery.Document) {
		if sel := doc.Find(selector); sel.Length() > 0 {
			v = valueOf(sel.Get(0))
		}
	})
	return v
}

func (p *Page) Text(selector string) string {
	var v string
	_ = p.Mutate(func(doc *goquery.Document) {
		v = doc.Find(selector).First().Text()
	})
	return v
}

func (p *Page) SetText(selector, text string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).SetText(text)
	})
}

func (p *Page) SetAttr(selector, name, value string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).SetAttr(name, value)
	})
}

func (p *Page) RemoveAttr(selector, name string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).RemoveAttr(name)
	})
}

func (p *Page) Remove(selector string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).Remove()
	})
}

func (p *Page) AppendHTML(selector, markup string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).AppendHtml(markup)
	})
}

func (p *Page) SetHTML(selector, markup string) error {
	return p.Mutate(func(doc *goquery.Document) {
		doc.Find(selector).SetHtml(markup)
	})
}

// RaiseDialog opens a dialog outside of any action, as a timer callback would.
func (p *Page) RaiseDialog(ctx context.Context, ev entity.DialogEvent) (entity.DialogResponse, error) {
	return p.b.raiseDialog(ctx, p.id, ev)
}
