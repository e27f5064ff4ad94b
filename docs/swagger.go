// Package docs holds the Back-office API documentation served at /swagger.
package docs

// @title Back-office API
// @version 1.0
// @description Back-office administration API: content categories, organizations, regions, dictionaries, roles, menus, permission groups, users and account logs.

// @contact.name API Support
// @contact.email support@backoffice.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// @tag.name auth
// @tag.description Login and current user
// @tag.name categories
// @tag.description CMS category tree
// @tag.name organizations
// @tag.description Organization tree with hierarchical codes
// @tag.name regions
// @tag.description Lazy loaded region tree
// @tag.name dicts
// @tag.description Dictionaries and their items
// @tag.name roles
// @tag.description Role management
// @tag.name menus
// @tag.description Admin console menu tree
// @tag.name auth-groups
// @tag.description Permission group tree
// @tag.name users
// @tag.description System users and front end member lookup
// @tag.name audit
// @tag.description Account logs
