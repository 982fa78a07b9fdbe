/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Book holds the publication metadata of book.yml, used by exports.
type Book struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Language    string `yaml:"language"`
	Publisher   string `yaml:"publisher"`
	Description string `yaml:"description"`
}

type bookDoc struct {
	Book Book `yaml:"book"`
}

// LoadBook reads <root>/book.yml. A missing file yields an empty Book.
func LoadBook(root string) (Book, error) {
	data, err := os.ReadFile(filepath.Join(root, BookFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Book{}, nil
	}
	if err != nil {
		return Book{}, fmt.Errorf("read book: %w", err)
	}
	var doc bookDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Book{}, fmt.Errorf("parse book: %w", err)
	}
	return doc.Book, nil
}
