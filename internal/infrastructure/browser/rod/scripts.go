package rod

// Node handles live in a registry on the top window. Same-origin iframe documents
// are reached through contentDocument, so one registry covers the whole page. The
// epoch changes with every new document, which keeps ids from a previous document
// from resolving after navigation.
const prelude = `
const H = (() => {
  const w = window;
  if (!w.__harness) {
    w.__harness = {
      epoch: Math.floor(Math.random() * 1e9) + 1,
      n: 0,
      byId: new Map(),
      byNode: new WeakMap(),
    };
  }
  const r = w.__harness;
  const idOf = (node) => {
    let id = r.byNode.get(node);
    if (id === undefined) {
      id = r.epoch * 1e6 + (++r.n);
      r.byNode.set(node, id);
      r.byId.set(id, new WeakRef(node));
    }
    return id;
  };
  const nodeOf = (id) => {
    const ref = r.byId.get(id);
    return ref ? ref.deref() : undefined;
  };
  const attached = (node) => {
    for (let cur = node; cur; ) {
      if (!cur.isConnected) return false;
      const doc = cur.ownerDocument || cur;
      const fe = doc.defaultView && doc.defaultView.frameElement;
      if (!fe) return doc === document;
      cur = fe;
    }
    return false;
  };
  const live = (id) => {
    const n = nodeOf(id);
    return n && attached(n) ? n : null;
  };
  return { idOf, nodeOf, attached, live };
})();
`

// wrap turns body, a JS function expression, into one that sees the registry as H.
func wrap(body string) string {
	return "function(...args) {\n" + prelude + "\nreturn (" + body + ").apply(this, args);\n}"
}

const jsFrames = `() => {
  const out = [{ id: "main", parent: "", kind: "document", name: "", url: location.href, host: 0 }];
  const walk = (root, parent) => {
    for (const el of root.querySelectorAll("*")) {
      if (el.shadowRoot) {
        const host = H.idOf(el);
        const id = "shadow-" + host;
        out.push({ id, parent, kind: "shadow", name: "", url: "", host });
        walk(el.shadowRoot, id);
      }
      const tag = el.tagName;
      if (tag === "IFRAME" || tag === "FRAME") {
        let doc = null;
        try { doc = el.contentDocument; } catch (e) { doc = null; }
        if (!doc) continue;
        const host = H.idOf(el);
        const id = "frame-" + host;
        const src = el.getAttribute("src");
        out.push({ id, parent, kind: "iframe", name: el.getAttribute("name") || "", url: src === null ? "about:srcdoc" : doc.location.href, host });
        walk(doc, id);
      }
    }
  };
  walk(document, "main");
  return JSON.stringify(out);
}`

const jsQuery = `(kind, hostId, rootId, engine, body, pierce) => {
  let scope = document;
  if (hostId) {
    const host = H.live(hostId);
    if (!host) return JSON.stringify({ stale: true });
    if (kind === "iframe") {
      try { scope = host.contentDocument; } catch (e) { scope = null; }
    } else if (kind === "shadow") {
      scope = host.shadowRoot;
    }
    if (!scope) return JSON.stringify({ stale: true });
  }
  let root = scope;
  if (rootId) {
    const n = H.live(rootId);
    if (!n || n === scope || !scope.contains(n)) return JSON.stringify({ ids: [] });
    root = n;
  }
  const found = [];
  try {
    if (engine === "xpath") {
      const doc = scope.nodeType === 9 ? scope : scope.ownerDocument;
      const res = doc.evaluate(body, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
      for (let i = 0; i < res.snapshotLength; i++) {
        const n = res.snapshotItem(i);
        if (n.nodeType === 1 && n !== root && n.getRootNode() === scope) found.push(n);
      }
    } else {
      const collect = (r) => {
        for (const n of r.querySelectorAll(body)) found.push(n);
        if (!pierce) return;
        for (const el of r.querySelectorAll("*")) {
          if (el.shadowRoot) collect(el.shadowRoot);
        }
      };
      collect(root);
    }
  } catch (e) {
    return JSON.stringify({ error: String(e && e.message || e) });
  }
  return JSON.stringify({ ids: found.map(H.idOf) });
}`

// jsState reports moving when the box differs across two animation frames.
const jsState = `async (id) => {
  const el = H.live(id);
  if (!el) return JSON.stringify({ attached: false });
  const win = el.ownerDocument.defaultView;
  const shown = (e) => {
    const st = e.ownerDocument.defaultView.getComputedStyle(e);
    const r = e.getBoundingClientRect();
    return r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
  };
  const offset = () => {
    let x = 0, y = 0;
    for (let w = win; w && w.frameElement; w = w.frameElement.ownerDocument.defaultView) {
      const fr = w.frameElement.getBoundingClientRect();
      x += fr.left + w.frameElement.clientLeft;
      y += fr.top + w.frameElement.clientTop;
    }
    return { x, y };
  };
  let visible = shown(el);
  for (let w = win; visible && w.frameElement; w = w.frameElement.ownerDocument.defaultView) {
    visible = shown(w.frameElement);
  }
  let rect = el.getBoundingClientRect();
  if (visible) {
    const cx = rect.left + rect.width / 2, cy = rect.top + rect.height / 2;
    if (cx < 0 || cy < 0 || cx > win.innerWidth || cy > win.innerHeight) {
      el.scrollIntoView({ block: "center", inline: "center" });
      rect = el.getBoundingClientRect();
    }
  }
  let receives = false;
  if (visible && win.getComputedStyle(el).pointerEvents !== "none") {
    const root = el.getRootNode();
    const hit = root.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
    receives = !!hit && (hit === el || el.contains(hit));
  }
  const tag = el.tagName.toLowerCase();
  const enabled = !(el.matches(":disabled") || el.getAttribute("aria-disabled") === "true");
  const textInput = tag === "input" &&
    !["button", "submit", "reset", "checkbox", "radio", "file", "image", "hidden", "range", "color"].includes((el.type || "").toLowerCase());
  const editable = enabled && (((textInput || tag === "textarea" || tag === "select") && !el.readOnly) || el.isContentEditable);
  const attrs = {};
  for (const a of el.attributes) attrs[a.name] = a.value;
  let moving = false;
  if (visible) {
    const next = await new Promise((done) => {
      const t = setTimeout(() => done(el.getBoundingClientRect()), 50);
      win.requestAnimationFrame(() => win.requestAnimationFrame(() => {
        clearTimeout(t);
        done(el.getBoundingClientRect());
      }));
    });
    moving = next.left !== rect.left || next.top !== rect.top ||
      next.width !== rect.width || next.height !== rect.height;
  }
  const o = offset();
  return JSON.stringify({
    attached: true,
    visible,
    moving,
    enabled,
    editable,
    checked: el.checked === true || el.getAttribute("aria-checked") === "true",
    receives,
    box: visible ? { x: rect.left + o.x, y: rect.top + o.y, w: rect.width, h: rect.height } : null,
    tag,
    text: el.textContent || "",
    value: typeof el.value === "string" ? el.value : "",
    attrs,
  });
}`

const jsNode = `(id) => H.live(id) || null`

const jsChecked = `(id) => { const el = H.live(id); return !!el && (el.checked === true || el.getAttribute("aria-checked") === "true"); }`

const jsSelect = `(id, values) => {
  const el = H.live(id);
  if (!el) return JSON.stringify({ stale: true });
  if (el.tagName !== "SELECT") return JSON.stringify({ error: "element is not a <select>" });
  const want = new Set(values);
  let matched = 0;
  for (const opt of el.options) {
    const hit = want.has(opt.value) || want.has(opt.label) || want.has(opt.textContent.trim());
    if (hit) matched++;
    if (el.multiple) opt.selected = hit;
    else if (hit && matched === 1) opt.selected = true;
  }
  if (matched === 0) return JSON.stringify({ error: "no option matches " + values.join(", ") });
  el.dispatchEvent(new Event("input", { bubbles: true }));
  el.dispatchEvent(new Event("change", { bubbles: true }));
  return JSON.stringify({});
}`

const jsOuterHTML = `(id) => { const el = H.live(id); return el ? el.outerHTML : null; }`

const jsLoadState = `() => {
  const nav = performance.getEntriesByType("navigation")[0];
  const end = nav ? nav.loadEventEnd : 0;
  return JSON.stringify({ ready: document.readyState, idle: end > 0 ? performance.now() - end : 0 });
}`
