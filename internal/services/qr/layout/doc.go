// Package layout tiles a physical page with a grid of equally sized cells and
// paints one QR code, its label and four corner cutting guides per cell.
//
// All geometry is configured in millimetres. The ratio between the drawing
// surface's native unit and millimetres is taken from the surface itself
// (surface page width / page width in mm), so the same geometry prints at the
// same physical size on any surface.
//
// Cells are filled row-major: the outer loop walks rows top to bottom, the
// inner loop walks columns left to right, and identifiers are consumed by an
// index cursor over the caller's slice. Identifier i of a stored sheet
// therefore always lands at row i/cols, column i%cols.
package layout
