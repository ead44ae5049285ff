// Package pagescript holds the JavaScript assets evaluated inside monitored
// pages and the in-page monitor distributed by the injector.
package pagescript

import (
	_ "embed"
	"fmt"
)

// MonitorScript is the standalone in-page error monitor. It is the asset
// `overlaywatch inject` copies into a host application's public directory;
// it wraps console.error, watches for framework error overlays, and posts
// reports to the parent window.
//
//go:embed monitor.js
var MonitorScript string

// DemoPageHTML is an embedded page that generates console errors and a
// synthetic framework error overlay for validating overlaywatch end to end.
//
//go:embed demo.html
var DemoPageHTML string

// scanTemplate is evaluated in a page to look for a resolved error overlay.
// It runs a single pass; the Go side owns the retry loop. The result fields:
// present reports whether any overlay element exists at all, found reports
// whether one with a resolved header was serialized into dom.
const scanTemplate = `(() => {
	const result = { present: false, found: false, dom: "" };
	try {
		const overlays = document.querySelectorAll(%q);
		if (!overlays.length) return result;
		result.present = true;
		for (const overlay of overlays) {
			const root = overlay.shadowRoot;
			if (!root) continue;
			if (!root.querySelector('h1')) continue;
			result.found = true;
			result.dom = root.innerHTML;
			return result;
		}
	} catch (err) {
		// Scan failures degrade to "nothing found".
	}
	return result;
})()`

// ScanExpression builds the overlay scan expression for the given overlay
// element selector.
func ScanExpression(selector string) string {
	return fmt.Sprintf(scanTemplate, selector)
}

// observerTemplate installs a MutationObserver that calls a CDP binding when
// a qualifying mutation occurs: the overlay tag added, a node carrying a
// shadow root added, a subtree containing the overlay added, or an attribute
// change on an overlay element.
const observerTemplate = `(() => {
	const selector = %q;
	const binding = %q;
	if (window.__overlaywatchObserverInstalled) return;
	window.__overlaywatchObserverInstalled = true;

	const notify = (reason) => {
		try {
			const fn = window[binding];
			if (typeof fn === 'function') fn(JSON.stringify({ reason: reason }));
		} catch (err) {}
	};

	const isOverlayNode = (node) => {
		if (!node || node.nodeType !== 1) return false;
		if (node.tagName && node.tagName.toLowerCase() === selector) return true;
		if (node.shadowRoot) return true;
		try {
			if (node.querySelector && node.querySelector(selector)) return true;
		} catch (err) {}
		return false;
	};

	const install = () => {
		if (!document.body) return false;
		try {
			const observer = new MutationObserver((mutations) => {
				for (const mutation of mutations) {
					if (mutation.type === 'attributes' && isOverlayNode(mutation.target)) {
						notify('attribute');
						return;
					}
					if (mutation.type === 'childList') {
						for (const node of mutation.addedNodes) {
							if (isOverlayNode(node)) {
								notify('added');
								return;
							}
						}
					}
				}
			});
			observer.observe(document.body, { childList: true, subtree: true, attributes: true });
			return true;
		} catch (err) {
			return false;
		}
	};

	if (!install()) {
		document.addEventListener('DOMContentLoaded', install);
	}
})()`

// ObserverScript builds the mutation observer installer for the given
// overlay selector and CDP binding name.
func ObserverScript(selector, binding string) string {
	return fmt.Sprintf(observerTemplate, selector, binding)
}
