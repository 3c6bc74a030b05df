package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-rod/rod"
	"github.com/use-agent/pageshot/models"
)

// roleSelectors maps ARIA roles to the elements that carry them implicitly.
var roleSelectors = map[string]string{
	"heading":     "h1,h2,h3,h4,h5,h6,[role=heading]",
	"button":      "button,[role=button],input[type=button],input[type=submit],input[type=reset]",
	"link":        "a[href],[role=link]",
	"textbox":     "input:not([type]),input[type=text],input[type=email],input[type=tel],input[type=url],input[type=search],input[type=password],textarea,[role=textbox]",
	"checkbox":    "input[type=checkbox],[role=checkbox]",
	"radio":       "input[type=radio],[role=radio]",
	"combobox":    "select,[role=combobox]",
	"dialog":      "dialog,[role=dialog],[role=alertdialog]",
	"img":         "img[alt],[role=img]",
	"list":        "ul,ol,[role=list]",
	"listitem":    "li,[role=listitem]",
	"navigation":  "nav,[role=navigation]",
	"form":        "form,[role=form]",
	"progressbar": "progress,[role=progressbar]",
}

// roleSelector returns the CSS selector matching elements with role.
func roleSelector(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if sel, ok := roleSelectors[role]; ok {
		return sel
	}
	return fmt.Sprintf("[role=%q]", role)
}

// nameRegex builds the case-insensitive substring match rod's ElementR
// expects ("/pattern/flags").
func nameRegex(name string) string {
	quoted := regexp.QuoteMeta(strings.TrimSpace(name))
	return "/" + strings.ReplaceAll(quoted, "/", `\/`) + "/i"
}

// labelJS resolves a form control from its visible label text, falling back
// to aria-label. It returns null until a match exists, which makes rod retry.
const labelJS = `(label) => {
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const want = norm(label);
	for (const l of document.querySelectorAll('label')) {
		if (!norm(l.textContent).includes(want)) continue;
		if (l.control) return l.control;
		const id = l.getAttribute('for');
		if (id) {
			const el = document.getElementById(id);
			if (el) return el;
		}
	}
	for (const el of document.querySelectorAll('[aria-label]')) {
		if (norm(el.getAttribute('aria-label')).includes(want)) return el;
	}
	return null;
}`

// find resolves loc on p, retrying until the element exists or p's context
// ends.
func find(p *rod.Page, loc models.Locator) (*rod.Element, error) {
	switch {
	case loc.Label != "":
		return p.ElementByJS(rod.Eval(labelJS, loc.Label))
	case loc.Role != "" && loc.Name != "":
		return p.ElementR(roleSelector(loc.Role), nameRegex(loc.Name))
	case loc.Role != "":
		return p.Element(roleSelector(loc.Role))
	case loc.CSS != "" && loc.Name != "":
		return p.ElementR(loc.CSS, nameRegex(loc.Name))
	case loc.CSS != "":
		return p.Element(loc.CSS)
	}
	return nil, fmt.Errorf("cannot resolve %s", loc)
}
