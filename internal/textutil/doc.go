// Package textutil provides text helpers for turning media titles into
// filesystem-safe names.
//
// Slugify folds accents through Unicode decomposition before reducing a title
// to lowercase ASCII words joined by hyphens, so "Café Déjà Vu!" becomes
// "cafe-deja-vu".
package textutil
