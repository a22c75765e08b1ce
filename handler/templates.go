package handler

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data rendered by message.html
type Page struct {
	Title    string
	Message  string
	Body     string
	Link     string
	LinkText string
}

// LoadTemplates installs the embedded page templates on router
func LoadTemplates(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))
}
