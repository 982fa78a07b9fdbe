/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements project persistence and indexing.
// It scaffolds and opens story projects (config.yml, assets/, src/) and writes build artifacts
// transactionally with timestamped backups under build/.backups.
// It also manages the per-project embedded SQLite index at <project>/.gsb/index.sqlite used for
// beat search and source history. The index is derived from the sources and is rebuildable.
package storage
