package site

import (
	"fmt"
	"sort"
	"strings"

	"github.com/milkyware/glacier/internal/config"
)

// DiagramTheme is the mermaid rendering theme resolved from a skin.
type DiagramTheme string

const (
	DiagramThemeDefault DiagramTheme = "default"
	DiagramThemeDark    DiagramTheme = "dark"
	DiagramThemeForest  DiagramTheme = "forest"
	DiagramThemeNeutral DiagramTheme = "neutral"
)

// skinDiagramThemes is the fixed mapping from site skin to mermaid theme.
// Every configurable skin has an entry; anything else falls back to
// DiagramThemeDefault, both here and in the emitted client script.
var skinDiagramThemes = map[config.Skin]DiagramTheme{
	config.SkinDefault:  DiagramThemeDefault,
	config.SkinDark:     DiagramThemeDark,
	config.SkinMint:     DiagramThemeForest,
	config.SkinPlum:     DiagramThemeDark,
	config.SkinSunrise:  DiagramThemeDefault,
	config.SkinContrast: DiagramThemeDark,
	config.SkinAqua:     DiagramThemeNeutral,
}

// DiagramThemeFor resolves the mermaid theme for a skin, falling back to
// the default theme for unrecognized or future skin names.
func DiagramThemeFor(skin config.Skin) DiagramTheme {
	if theme, ok := skinDiagramThemes[skin]; ok {
		return theme
	}
	return DiagramThemeDefault
}

// DiagramScript renders the client enhancement script emitted at
// assets/js/diagrams.js. The skin->theme table is generated from the Go
// registry above so build time and run time cannot drift apart.
//
// The script follows a single load-time pass: it waits for DOMContentLoaded,
// reads the skin name the layouts baked into window.glacierSkin, resolves
// the diagram theme with a fallback, then renders each marked element
// individually; a malformed diagram shows an inline error in its own
// element without aborting its siblings.
func DiagramScript() []byte {
	skins := make([]config.Skin, 0, len(skinDiagramThemes))
	for s := range skinDiagramThemes {
		skins = append(skins, s)
	}
	sort.Slice(skins, func(i, j int) bool { return skins[i] < skins[j] })

	var table strings.Builder
	for i, s := range skins {
		if i > 0 {
			table.WriteString(", ")
		}
		fmt.Fprintf(&table, "%q: %q", s, skinDiagramThemes[s])
	}

	script := `// Generated by glacier. Boots mermaid diagram rendering after page load.
(function () {
  "use strict";

  var THEMES = {` + table.String() + `};
  var FALLBACK = "` + string(DiagramThemeDefault) + `";

  function resolveTheme(skin) {
    if (typeof skin === "string" && Object.prototype.hasOwnProperty.call(THEMES, skin)) {
      return THEMES[skin];
    }
    return FALLBACK;
  }

  function renderAll() {
    if (typeof mermaid === "undefined") {
      return;
    }
    var theme = resolveTheme(window.glacierSkin);
    mermaid.initialize({ startOnLoad: false, theme: theme });

    var blocks = document.querySelectorAll("div.mermaid");
    for (var i = 0; i < blocks.length; i++) {
      (function (el, n) {
        try {
          var source = el.textContent;
          mermaid.render("glacier-diagram-" + n, source).then(function (result) {
            el.innerHTML = result.svg;
          }).catch(function (err) {
            showError(el, err);
          });
        } catch (err) {
          // One malformed diagram must not abort its siblings.
          showError(el, err);
        }
      })(blocks[i], i);
    }
  }

  function showError(el, err) {
    var msg = document.createElement("pre");
    msg.className = "mermaid-error";
    msg.textContent = "diagram error: " + (err && err.message ? err.message : err);
    el.replaceChildren(msg);
  }

  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", renderAll);
  } else {
    renderAll();
  }
})();
`
	return []byte(script)
}
