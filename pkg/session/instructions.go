package session

import (
	"fmt"
	"io"
	"strings"

	"profilegrab/pkg/models"
)

var homePages = map[models.Platform]string{
	models.Instagram: "https://www.instagram.com",
	models.Threads:   "https://www.threads.net",
	models.Facebook:  "https://www.facebook.com",
}

// MissingMessage is the text surfaced when a run finds no saved cookies
func MissingMessage(platform models.Platform) string {
	return fmt.Sprintf("no saved cookies for %s: log in manually in a browser and run 'profilegrab session import %s <cookies.json>'", platform, platform)
}

// WriteExportGuide prints step-by-step instructions for exporting cookies
func WriteExportGuide(w io.Writer, platform models.Platform) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "EXPORTING %s COOKIES\n", strings.ToUpper(string(platform)))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Open %s in Chrome or Firefox and log in.\n", homePages[platform])
	fmt.Fprintln(w, "2. Make sure your feed loads; dismiss any consent dialogs.")
	fmt.Fprintln(w, "3. Export the site's cookies as JSON, either with a cookie-export")
	fmt.Fprintln(w, "   extension or from DevTools > Application > Cookies.")
	fmt.Fprintf(w, "4. Run: profilegrab session import %s cookies.json\n", platform)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookies grant full access to the account. They are stored")
	fmt.Fprintln(w, "encrypted and never printed; delete the export file afterwards.")
	fmt.Fprintln(w, rule)
}
