package main

import (
	"fmt"
	"io"
	"strings"

	"cartsync/internal/session"
	"cartsync/internal/types"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	ruleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

const ruleWidth = 60

func rule() string {
	return ruleStyle.Render(strings.Repeat("─", ruleWidth))
}

func renderCart(w io.Writer, title string, cart types.Cart) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, rule())
	if len(cart.Items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (empty)"))
		return
	}
	for _, l := range cart.Items {
		name := l.ProductID
		if l.Product != nil && l.Product.Name != "" {
			name = l.Product.Name + " (" + l.ProductID + ")"
		}
		variant := l.VariantID
		if variant == "" {
			variant = "sku " + l.VariantSKU
		}
		fmt.Fprintf(w, "  %-36s %-14s x%-3d %10.2f\n", name, variant, l.Quantity, l.Subtotal())
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("id "+l.ID))
	}
	fmt.Fprintln(w, rule())
	fmt.Fprintf(w, "  %d item(s)  total %.2f\n", cart.ItemCount(), cart.TotalAmount)
}

func renderWishlist(w io.Writer, title string, wl types.Wishlist) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, rule())
	if len(wl.Items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (empty)"))
		return
	}
	for _, e := range wl.Items {
		line := "  ♥ " + e.ProductID
		if e.Product != nil && e.Product.Name != "" {
			line += "  " + e.Product.Name
		}
		if !e.AddedAt.IsZero() {
			line += "  " + dimStyle.Render(e.AddedAt.Format("2006-01-02"))
		}
		fmt.Fprintln(w, line)
	}
	if wl.Total > len(wl.Items) {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  page %d, %d of %d shown", wl.Page, len(wl.Items), wl.Total)))
	}
}

func renderSync(w io.Writer, res session.Result) {
	style := okStyle
	switch res.Outcome() {
	case session.OutcomePartial:
		style = warnStyle
	case session.OutcomeFailed:
		style = errStyle
	case session.OutcomeNothingToSync:
		style = dimStyle
	}
	fmt.Fprintln(w, style.Render(res.Summary()))
	for _, rr := range []session.ResourceResult{res.Cart, res.Wishlist} {
		if rr.RefreshErr != nil {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  could not reload %s: %v", rr.Resource, rr.RefreshErr)))
		}
	}
}

func renderNotice(w io.Writer, msg string) {
	fmt.Fprintln(w, dimStyle.Render(msg))
}
