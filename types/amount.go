// Copyright (c) 2024 The umbra developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import "errors"

// Amount is a signed value in the chain's smallest unit, with
// overflow-checked Add and Sub. Asset supply is held as a plain uint64,
// guarded by SupplyAdd and SupplySub below.
type Amount int64

// ErrAmountOverflow is returned by arithmetic helpers that would wrap.
var ErrAmountOverflow = errors.New("amount overflow")

// Add returns a+b, erroring on signed overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns a-b, erroring on signed overflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	return a.Add(-b)
}

// SupplyAdd adds b to a supply held as uint64, erroring on overflow.
func SupplyAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// SupplySub subtracts b from a supply held as uint64, erroring on
// underflow -- this is the "SUPPLY_UNDERFLOW" rule at the burn boundary.
func SupplySub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrAmountOverflow
	}
	return a - b, nil
}
