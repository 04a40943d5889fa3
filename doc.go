/*
 * Copyright 2025 BorealDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package boreal provides a lightweight client for BorealDB over HTTP,
using the server's native RowBinary encoding for low-overhead bulk
inserts and streaming query results.

# Client

Use NewClient to create a client struct. This is the major entrance to
construct structs for interacting with BorealDB:

	client := boreal.NewClient(&boreal.Config{
		Endpoint:    "http://<boreal-host>:<boreal-port:-8123>",
		Compression: boreal.CompressionLZ4,
	})

# Query Data

Describe the selected columns as a RowType and drain the cursor:

	typ := boreal.RowType{
		{Name: "id", Type: boreal.Int32},
		{Name: "name", Type: boreal.String},
	}
	cursor, err := client.Query(`SELECT id, name FROM users`).Rows(ctx, typ)
	if err != nil {
		return err
	}
	defer cursor.Close()
	for {
		row, err := cursor.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		// row[0].(int32), row[1].(string)
	}

# Write Data

Use Insert for one streaming transaction, or Inserter to batch many small
writes behind row, byte and time thresholds:

	ins, err := client.Inserter("users", typ)
	if err != nil {
		return err
	}
	ins.MaxRows = 10_000
	ins.Period = time.Second
	for _, u := range users {
		if _, err := ins.Write(ctx, []boreal.Value{u.ID, u.Name}); err != nil {
			return err
		}
	}
	return ins.Close(ctx)

The Period threshold fires inside Write and CheckThresholds; there is no
background timer, so poll CheckThresholds from your own loop if writes
can go quiet.
*/
package boreal
