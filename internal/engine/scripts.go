package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Page scripts are function sources returning JSON.stringify output so every
// engine reads results the same way regardless of its remote-object model.

const hideElementsJS = `(sel) => {
  var n = 0;
  try {
    document.querySelectorAll(sel).forEach(function (el) {
      el.style.setProperty("display", "none", "important");
      n++;
    });
  } catch (e) {
    return JSON.stringify({count: 0, error: String(e)});
  }
  return JSON.stringify({count: n});
}`

const viewportJS = `() => JSON.stringify({width: window.innerWidth, height: window.innerHeight})`

const pageExtentJS = `() => {
  var b = document.body, d = document.documentElement;
  return JSON.stringify({
    width: Math.max(b ? b.scrollWidth : 0, d.scrollWidth, d.clientWidth),
    height: Math.max(b ? b.scrollHeight : 0, d.scrollHeight, d.clientHeight)
  });
}`

const elementRectJS = `(sel) => {
  var el;
  try {
    el = document.querySelector(sel);
  } catch (e) {
    return JSON.stringify({found: false, error: String(e)});
  }
  if (!el) return JSON.stringify({found: false});
  var r = el.getBoundingClientRect();
  return JSON.stringify({
    found: true,
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: r.width,
    height: r.height
  });
}`

const selectorPresentJS = `(sel) => {
  try {
    return JSON.stringify({found: document.querySelector(sel) !== null});
  } catch (e) {
    return JSON.stringify({found: false, error: String(e)});
  }
}`

const hideWebdriverJS = `Object.defineProperty(navigator, "webdriver", {get: () => undefined});`

type hideResult struct {
	Count int    `json:"count"`
	Error string `json:"error"`
}

type presenceResult struct {
	Found bool   `json:"found"`
	Error string `json:"error"`
}

type elementRect struct {
	Found  bool    `json:"found"`
	Error  string  `json:"error"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// callExpr renders fn applied to JSON-encoded args as a standalone expression.
func callExpr(fn string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		b, _ := json.Marshal(a)
		parts[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(parts, ", ") + ")"
}

// webDriverBody wraps fn as a WebDriver script body reading its arguments.
func webDriverBody(fn string) string {
	return "return (" + fn + ").apply(null, arguments);"
}

func decodeResult(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}

func (r elementRect) check(selector string) error {
	if r.Error != "" {
		return NewError(CodeElementNotFound, fmt.Sprintf("invalid selector %q: %s", selector, r.Error), nil)
	}
	if !r.Found {
		return NewError(CodeElementNotFound, fmt.Sprintf("no element matches %q", selector), nil)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return NewError(CodeCaptureFailure, fmt.Sprintf("element %q has an empty bounding box", selector), nil)
	}
	return nil
}
