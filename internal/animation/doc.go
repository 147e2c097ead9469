// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides animated image compositing.
//
// A [Session] reconstructs the canvas to display at each step of a
// palette-indexed animation. Frames are obtained from a [Decoder] and drawn
// into a caller-owned [Canvas], applying each frame's disposal mode and
// transparency before the next frame is drawn. The session reports how long
// each composite should be shown, but does not wait; timing is owned by the
// caller.
package animation
