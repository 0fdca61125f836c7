// Package platform contains OS integration: the user's Downloads directory,
// directory creation and lookup of the bundled or installed media tools.
package platform
