package extractor

import "meetsync/internal/browser"

const (
	scriptPanelSelector   = "panel-selector"
	scriptPanelText       = "panel-text"
	scriptScrollContainer = "scroll-container"
	scriptScroll          = "scroll"
	scriptReadRows        = "read-rows"
)

// scrollBottom asks the scroll script to jump to the end of the list
const scrollBottom = -1

const panelSelectorJS = `
function (selector) {
  var el = document.querySelector(selector);
  if (!el) { return false; }
  el.click();
  return true;
}`

const panelTextJS = `
function (texts) {
  var wanted = texts.map(function (t) { return t.toLowerCase(); });
  var nodes = document.querySelectorAll('button, [role="button"], [role="tab"], a');
  for (var i = 0; i < nodes.length; i++) {
    var label = ((nodes[i].getAttribute('aria-label') || '') + ' ' + nodes[i].textContent).toLowerCase().trim();
    for (var j = 0; j < wanted.length; j++) {
      if (label.indexOf(wanted[j]) !== -1) {
        nodes[i].click();
        return true;
      }
    }
  }
  return false;
}`

const scrollContainerJS = `
function (selector) {
  var prev = document.querySelectorAll('[data-meetsync-scroll]');
  for (var k = 0; k < prev.length; k++) { prev[k].removeAttribute('data-meetsync-scroll'); }
  var candidates = Array.prototype.slice.call(document.querySelectorAll(selector));
  var all = document.querySelectorAll('div, ul, section');
  for (var i = 0; i < all.length; i++) {
    var style = window.getComputedStyle(all[i]);
    if (style.overflowY === 'auto' || style.overflowY === 'scroll') { candidates.push(all[i]); }
  }
  var best = null, bestOverflow = 0;
  for (var j = 0; j < candidates.length; j++) {
    var overflow = candidates[j].scrollHeight - candidates[j].clientHeight;
    if (overflow > bestOverflow) { best = candidates[j]; bestOverflow = overflow; }
  }
  if (!best) { return { found: false, scrollHeight: 0, clientHeight: 0 }; }
  best.setAttribute('data-meetsync-scroll', '1');
  return { found: true, scrollHeight: best.scrollHeight, clientHeight: best.clientHeight };
}`

const scrollJS = `
function (position) {
  var el = document.querySelector('[data-meetsync-scroll]');
  if (!el) { return { scrollTop: 0, scrollHeight: 0, clientHeight: 0 }; }
  el.scrollTop = position < 0 ? el.scrollHeight : position;
  el.dispatchEvent(new Event('scroll'));
  return { scrollTop: el.scrollTop, scrollHeight: el.scrollHeight, clientHeight: el.clientHeight };
}`

const readRowsJS = `
function (rowSelector, timestampSelector, textSelector) {
  var root = document.querySelector('[data-meetsync-scroll]') || document;
  var rows = root.querySelectorAll(rowSelector);
  var out = [];
  for (var i = 0; i < rows.length; i++) {
    var ts = rows[i].querySelector(timestampSelector);
    var tx = rows[i].querySelector(textSelector);
    var sp = rows[i].querySelector('[class*="speaker"], [class*="user-name"]');
    var text = (tx && tx !== ts ? tx.textContent : rows[i].textContent).trim();
    if (!text) { continue; }
    out.push({
      timestamp: ts ? ts.textContent.trim() : '',
      speaker: sp && sp !== tx && sp !== ts ? sp.textContent.trim() : '',
      text: text
    });
  }
  return out;
}`

func panelSelectorScript(selector string) string {
	return browser.Script(scriptPanelSelector, panelSelectorJS, selector)
}

func panelTextScript(texts []string) string {
	return browser.Script(scriptPanelText, panelTextJS, texts)
}

func scrollContainerScript(selector string) string {
	return browser.Script(scriptScrollContainer, scrollContainerJS, selector)
}

func scrollScript(position int) string {
	return browser.Script(scriptScroll, scrollJS, position)
}

func readRowsScript(row, timestamp, text string) string {
	return browser.Script(scriptReadRows, readRowsJS, row, timestamp, text)
}
