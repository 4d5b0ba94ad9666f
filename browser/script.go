package browser

import (
	"encoding/json"
	"fmt"
)

// runtimeJS is evaluated in the page before every element operation. It
// installs window.__runner once and is a no-op afterwards.
const runtimeJS = `(function () {
  if (window.__runner) { return; }

  function norm(s) { return (s || '').replace(/\s+/g, ' ').trim(); }

  function textOf(el) {
    var t = norm(el.innerText || el.textContent);
    if (!t && (el.tagName === 'INPUT' || el.tagName === 'BUTTON')) {
      t = norm(el.value);
    }
    return t;
  }

  function textMatches(el, text, exact) {
    var t = textOf(el);
    if (exact) { return t === norm(text); }
    return t.toLowerCase().indexOf(norm(text).toLowerCase()) !== -1;
  }

  function byXPath(expr) {
    var out = [];
    var res = document.evaluate(expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (var i = 0; i < res.snapshotLength; i++) {
      var n = res.snapshotItem(i);
      if (n.nodeType === Node.ELEMENT_NODE) { out.push(n); }
    }
    return out;
  }

  function byText(text, exact) {
    var all = Array.prototype.slice.call(document.body ? document.body.querySelectorAll('*') : []);
    var hits = all.filter(function (el) {
      if (el.tagName === 'SCRIPT' || el.tagName === 'STYLE') { return false; }
      return textMatches(el, text, exact);
    });
    return hits.filter(function (el) {
      return !hits.some(function (other) { return other !== el && el.contains(other); });
    });
  }

  function find(target) {
    var els;
    if (target.kind === 'xpath') {
      els = byXPath(target.expr);
    } else if (target.kind === 'text') {
      els = byText(target.expr, target.exact);
    } else {
      els = Array.prototype.slice.call(document.querySelectorAll(target.expr));
    }
    (target.hasText || []).forEach(function (t) {
      els = els.filter(function (el) { return textMatches(el, t, false); });
    });
    return els;
  }

  function visible(el) {
    var r = el.getBoundingClientRect();
    var st = window.getComputedStyle(el);
    return r.width > 0 && r.height > 0 &&
      st.display !== 'none' && st.visibility !== 'hidden' &&
      parseFloat(st.opacity || '1') !== 0;
  }

  function nth(target, i) {
    var els = find(target);
    if (i < 0 || i >= els.length) { return null; }
    return els[i];
  }

  function cssPath(el) {
    if (el.id && document.querySelectorAll('#' + CSS.escape(el.id)).length === 1) {
      return '#' + CSS.escape(el.id);
    }
    var parts = [];
    while (el && el.nodeType === Node.ELEMENT_NODE && el !== document.documentElement) {
      var tag = el.tagName.toLowerCase();
      var parent = el.parentElement;
      if (!parent) { parts.unshift(tag); break; }
      var same = Array.prototype.filter.call(parent.children, function (c) { return c.tagName === el.tagName; });
      if (same.length > 1) {
        tag += ':nth-of-type(' + (same.indexOf(el) + 1) + ')';
      }
      parts.unshift(tag);
      if (parent.id && document.querySelectorAll('#' + CSS.escape(parent.id)).length === 1) {
        parts.unshift('#' + CSS.escape(parent.id));
        break;
      }
      el = parent;
    }
    return parts.join(' > ');
  }

  var interactive = 'a[href], button, input:not([type=hidden]), select, textarea, summary, label,' +
    ' [role=button], [role=link], [role=checkbox], [role=radio], [role=tab], [role=menuitem],' +
    ' [role=option], [role=switch], [onclick], [contenteditable=""], [contenteditable=true]';

  window.__runner = {
    count: function (target) { return find(target).length; },

    firstVisible: function (target) { return find(target).findIndex(visible); },

    forceVisible: function (target) {
      find(target).forEach(function (el) {
        var st = window.getComputedStyle(el);
        if (st.display === 'none') { el.style.setProperty('display', 'block', 'important'); }
        el.style.setProperty('visibility', 'visible', 'important');
        el.style.setProperty('opacity', '1', 'important');
      });
      return true;
    },

    point: function (target, i) {
      var el = nth(target, i);
      if (!el) { return null; }
      el.scrollIntoView({ block: 'center', inline: 'center' });
      var r = el.getBoundingClientRect();
      return { x: r.left + r.width / 2, y: r.top + r.height / 2 };
    },

    prepareFill: function (target, i, value) {
      var el = nth(target, i);
      if (!el) { return ''; }
      el.scrollIntoView({ block: 'center' });
      el.focus();
      if (el.tagName === 'SELECT') {
        var opt = Array.prototype.find.call(el.options, function (o) {
          return o.value === value || norm(o.text) === norm(value);
        });
        el.value = opt ? opt.value : value;
        el.dispatchEvent(new Event('input', { bubbles: true }));
        el.dispatchEvent(new Event('change', { bubbles: true }));
        return 'select';
      }
      if ('value' in el) {
        var proto = Object.getPrototypeOf(el);
        var desc = Object.getOwnPropertyDescriptor(proto, 'value');
        if (desc && desc.set) { desc.set.call(el, ''); } else { el.value = ''; }
        el.dispatchEvent(new Event('input', { bubbles: true }));
      } else if (el.isContentEditable) {
        el.textContent = '';
      }
      return 'type';
    },

    value: function (target, i) {
      var el = nth(target, i);
      if (!el) { return null; }
      if (el.tagName === 'SELECT') {
        var o = el.options[el.selectedIndex];
        return o && norm(o.text) !== '' && o.value === '' ? o.text : el.value;
      }
      return 'value' in el ? el.value : el.textContent;
    },

    isFileInput: function (target, i) {
      var el = nth(target, i);
      return !!el && el.tagName === 'INPUT' && (el.type || '').toLowerCase() === 'file';
    },

    tag: function (target, i, ref) {
      var el = nth(target, i);
      if (!el) { return false; }
      el.setAttribute('data-runner-ref', ref);
      return true;
    },

    untag: function (ref) {
      document.querySelectorAll('[data-runner-ref="' + ref + '"]').forEach(function (el) {
        el.removeAttribute('data-runner-ref');
      });
      return true;
    },

    highlight: function (target, color) {
      var el = find(target)[0];
      if (!el) { return false; }
      el.style.outline = '2px solid ' + color;
      el.scrollIntoView({ block: 'center' });
      return true;
    },

    elements: function (limit) {
      var out = [];
      var els = document.querySelectorAll(interactive);
      for (var i = 0; i < els.length && out.length < limit; i++) {
        var el = els[i];
        if (!visible(el)) { continue; }
        out.push({
          index: out.length,
          tag: el.tagName.toLowerCase(),
          type: el.getAttribute('type') || '',
          role: el.getAttribute('role') || '',
          text: textOf(el).slice(0, 120),
          ariaLabel: el.getAttribute('aria-label') || '',
          placeholder: el.getAttribute('placeholder') || '',
          name: el.getAttribute('name') || '',
          selector: cssPath(el)
        });
      }
      return out;
    }
  };
})();`

// call builds an expression invoking a __runner method with JSON-encoded args.
func call(method string, args ...interface{}) (string, error) {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument: %w", err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, b...)
	}
	return fmt.Sprintf("window.__runner.%s(%s)", method, encoded), nil
}
