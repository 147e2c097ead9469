// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
)

type changeValue struct {
	Change
}

func (v changeValue) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", v.Event.Name),
		slog.String("op", v.Event.Op.String()),
	}
	if v.Config != nil {
		attrs = append(attrs, slog.String("sum", v.Config.Sum.String()))
	}
	if v.Err != nil {
		attrs = append(attrs, slog.Any("error", v.Err))
	}
	return slog.GroupValue(attrs...)
}

type sumValue struct {
	*Sum
}

func (v sumValue) LogValue() slog.Value {
	return slog.StringValue(v.String())
}
