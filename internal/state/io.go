// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	wraperrors "github.com/opsrelay/wrapup/pkg/errors"
)

// validatable is implemented by every state type that has required-field
// invariants.
type validatable interface {
	Validate() error
}

// WriteJSON atomically serializes v to path as indented JSON. This is the
// sole way any component writes a state file, guaranteeing the
// temp-file-plus-rename visibility invariant spec.md §3 and §8 depend on.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %T: %w", v, err)
	}
	data = append(data, '\n')
	return atomicfile.Write(path, data, 0o600)
}

// ReadJSON reads and unmarshals path into v. If v implements validatable,
// ReadJSON also runs Validate and wraps a failure in
// pkg/errors.ErrSchemaInvalid so callers can match it with errors.Is
// regardless of which field was missing.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", wraperrors.ErrSchemaInvalid, path, err)
	}
	if vv, ok := v.(validatable); ok {
		if err := vv.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", wraperrors.ErrSchemaInvalid, path, err)
		}
	}
	return nil
}
