// Package manifest loads template manifests: HCL files that declare the named
// templates of a project, what each one requires, and where missing templates
// can be fetched from.
//
//	template "page" {
//	  source   = "page.html"
//	  requires = [template.header, "remote_footer"]
//	  scripts  = ["js/app.js"]
//	  styles   = ["css/site.css"]
//	}
//
//	template "header" {
//	  text = "<h1><%=data.title%></h1>"
//	}
//
//	fetch {
//	  base_url  = "https://cdn.example.com/tpl/"
//	  extension = ".html"
//	}
//
// Loading happens in two passes. The first collects every template name from
// every file so that attribute expressions can refer to them as
// template.<name>; an unknown reference is reported as an HCL diagnostic. The
// second pass decodes the template bodies with that evaluation context plus a
// file(path) function that reads a file relative to the manifest.
package manifest
