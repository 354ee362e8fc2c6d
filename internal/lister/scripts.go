package lister

import "meetsync/internal/browser"

const (
	scriptCollectMeetings = "collect-meetings"
	scriptCollectClips    = "collect-clips"
	scriptCountItems      = "count-items"
	scriptScrollToEnd     = "scroll-to-end"
)

// collectMeetingsJS walks up from each download control until it reaches the row
// container holding both an email and a meeting id, and returns that container's text.
const collectMeetingsJS = `
function (controlSelector, maxDepth) {
  var emailRE = /[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}/;
  var idRE = /\d{3}\s?\d{3,4}\s?\d{4}/;
  var controls = document.querySelectorAll(controlSelector);
  var out = [];
  for (var i = 0; i < controls.length; i++) {
    var control = controls[i];
    var label = control.getAttribute('aria-label') || control.getAttribute('title') || control.textContent || '';
    var node = control.parentElement;
    var container = null;
    for (var depth = 0; node && depth < maxDepth; depth++) {
      var text = node.innerText || node.textContent || '';
      if (emailRE.test(text) && idRE.test(text)) { container = node; break; }
      node = node.parentElement;
    }
    if (!container) { continue; }
    var links = [];
    var anchors = container.querySelectorAll('a[href]');
    for (var j = 0; j < anchors.length; j++) { links.push(anchors[j].href); }
    out.push({ label: label.trim(), text: (container.innerText || container.textContent || '').trim(), links: links });
  }
  return out;
}`

// collectClipsJS returns one row per anchor that wraps a clip card.
// The share link comes from the anchor itself, never from a descendant.
const collectClipsJS = `
function (cardSelector, titleSelector) {
  var anchors = document.querySelectorAll('a[href]');
  var out = [];
  for (var i = 0; i < anchors.length; i++) {
    var a = anchors[i];
    var card = a.matches(cardSelector) ? a : a.querySelector(cardSelector);
    if (!card) { continue; }
    var title = card.querySelector(titleSelector);
    var img = card.querySelector('img');
    out.push({
      href: a.getAttribute('href') || '',
      title: title ? title.textContent.trim() : '',
      text: (card.innerText || card.textContent || '').trim(),
      thumbnail: img ? (img.currentSrc || img.src || '') : ''
    });
  }
  return out;
}`

const countItemsJS = `
function (selector) {
  return document.querySelectorAll(selector).length;
}`

// scrollToEndJS scrolls the document and every scrollable list container to the bottom
const scrollToEndJS = `
function (selector) {
  window.scrollTo(0, document.body.scrollHeight);
  var items = document.querySelectorAll(selector);
  if (items.length === 0) { return false; }
  for (var node = items[items.length - 1].parentElement; node; node = node.parentElement) {
    if (node.scrollHeight > node.clientHeight + 1) { node.scrollTop = node.scrollHeight; }
  }
  return true;
}`

func collectMeetingsScript(controlSelector string, maxDepth int) string {
	return browser.Script(scriptCollectMeetings, collectMeetingsJS, controlSelector, maxDepth)
}

func collectClipsScript(cardSelector, titleSelector string) string {
	return browser.Script(scriptCollectClips, collectClipsJS, cardSelector, titleSelector)
}

func countItemsScript(selector string) string {
	return browser.Script(scriptCountItems, countItemsJS, selector)
}

func scrollToEndScript(selector string) string {
	return browser.Script(scriptScrollToEnd, scrollToEndJS, selector)
}
