// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import "go.uber.org/zap"

// log is a no-op sink until the embedding binary calls UpdateLogger.
var log = zap.NewNop().Sugar()

// UpdateLogger replaces log with l. Call once, at startup, after
// building the real *zap.Logger.
func UpdateLogger(l *zap.SugaredLogger) {
	log = l
}
