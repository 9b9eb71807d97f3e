package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
)

// locatorStep is one link of a query chain: a selector scoped to the
// previous matches, or an index into them.
type locatorStep struct {
	selector string
	hasNth   bool
	nth      int
}

// locator is a lazy element query resolved in page context at call time.
type locator struct {
	page  *Page
	steps []locatorStep
}

func (l *locator) extend(step locatorStep) *locator {
	steps := make([]locatorStep, 0, len(l.steps)+1)
	steps = append(steps, l.steps...)
	steps = append(steps, step)

	return &locator{page: l.page, steps: steps}
}

func (l *locator) First() browser.Locator { return l.Nth(0) }

func (l *locator) Nth(i int) browser.Locator {
	return l.extend(locatorStep{hasNth: true, nth: i})
}

func (l *locator) Locator(selector string) browser.Locator {
	return l.extend(locatorStep{selector: selector})
}

// resolveScript builds the page script that resolves the chain to an array
// of elements named `scope`.
func (l *locator) resolveScript() string {
	var b strings.Builder

	b.WriteString("let scope = [document];\n")

	for _, step := range l.steps {
		if step.hasNth {
			fmt.Fprintf(&b, "scope = scope[%d] ? [scope[%d]] : [];\n", step.nth, step.nth)

			continue
		}

		fmt.Fprintf(&b, "scope = scope.flatMap((n) => Array.from(n.querySelectorAll(%s)));\n", jsStr(step.selector))
	}

	return b.String()
}

// run evaluates op against the first resolved element. op must be a JS
// expression over `el`.
func (l *locator) run(ctx context.Context, op string) (any, error) {
	script := "(() => {\n" + l.resolveScript() +
		"const el = scope[0];\n" +
		"if (!el) { throw new Error('no element matches " + strings.ReplaceAll(l.describe(), "'", "") + "'); }\n" +
		"return (" + op + ");\n})()"

	return l.page.Evaluate(ctx, script)
}

func (l *locator) describe() string {
	parts := make([]string, 0, len(l.steps))

	for _, step := range l.steps {
		if step.hasNth {
			parts = append(parts, fmt.Sprintf("nth(%d)", step.nth))
		} else {
			parts = append(parts, step.selector)
		}
	}

	return strings.Join(parts, " >> ")
}

func (l *locator) Count(ctx context.Context) (int, error) {
	script := "(() => {\n" + l.resolveScript() + "return scope.length;\n})()"

	result, err := l.page.Evaluate(ctx, script)
	if err != nil {
		return 0, err
	}

	count, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %v", result)
	}

	return int(count), nil
}

const visibleExpr = `(() => {
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return rect.width > 0 && rect.height > 0 &&
		style.visibility !== 'hidden' && style.display !== 'none';
})()`

// IsVisible polls until the element is visible or the timeout expires. A
// missing element is reported as not visible, not as an error.
func (l *locator) IsVisible(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		result, err := l.run(ctx, visibleExpr)
		if err == nil {
			if visible, ok := result.(bool); ok && visible {
				return true, nil
			}
		}

		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *locator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	visible, err := l.IsVisible(ctx, timeout)
	if err != nil {
		return err
	}

	if !visible {
		return fmt.Errorf("element %s not visible within %s", l.describe(), timeout)
	}

	return nil
}

func (l *locator) Click(ctx context.Context) error {
	_, err := l.run(ctx, "(el.scrollIntoView({block: 'center'}), el.click(), true)")

	return err
}

// Fill sets an input's value through the native setter so framework change
// detection sees the edit.
func (l *locator) Fill(ctx context.Context, value string) error {
	op := `(() => {
		const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
		el.focus();
		setter.call(el, ` + jsStr(value) + `);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`

	_, err := l.run(ctx, op)

	return err
}

func (l *locator) TextContent(ctx context.Context) (string, error) {
	return l.stringOp(ctx, "el.textContent || ''")
}

func (l *locator) InputValue(ctx context.Context) (string, error) {
	return l.stringOp(ctx, "el.value || ''")
}

func (l *locator) GetAttribute(ctx context.Context, name string) (string, error) {
	return l.stringOp(ctx, "el.getAttribute("+jsStr(name)+") || ''")
}

func (l *locator) IsChecked(ctx context.Context) (bool, error) {
	result, err := l.run(ctx, "!!el.checked")
	if err != nil {
		return false, err
	}

	checked, _ := result.(bool)

	return checked, nil
}

func (l *locator) ScrollIntoView(ctx context.Context) error {
	_, err := l.run(ctx, "(el.scrollIntoView({block: 'center'}), true)")

	return err
}

// Evaluate runs a JS expression with the matched element bound as `el`.
func (l *locator) Evaluate(ctx context.Context, script string) (any, error) {
	return l.run(ctx, script)
}

func (l *locator) stringOp(ctx context.Context, op string) (string, error) {
	result, err := l.run(ctx, op)
	if err != nil {
		return "", err
	}

	value, _ := result.(string)

	return value, nil
}

// jsStr quotes a Go string as a JS string literal.
func jsStr(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		return "''"
	}

	return string(quoted)
}
