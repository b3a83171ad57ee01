// Package docs provides generated OpenAPI documentation.
//
// scriptex API
//
//	@title			scriptex API
//	@version		1.0
//	@description	Converts handwritten answer-script page images into LaTeX documents.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/scriptex
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:5001
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/scriptex/serve.go -o ./swagger --parseDependency --parseInternal
