/*
Package schema defines the project model and validates it against a Context.

A project declares connections, tables to generate, seed files to load and
external sources to read from:

	requires: ">= 0.4"

	connections:
	  - type: postgres
	    name: warehouse
	    host: ${env:PGHOST:-localhost}
	    password: ${env:PGPASSWORD}
	    database: analytics

	tables:
	  - name: users
	    config: { rows: 1000 }
	    columns:
	      - name: id
	        data_type: integer
	        generator: primary_key.incrementing_id
	      - name: age
	        data_type: integer
	        generator: numeric.range
	        options:
	          min: 18
	          max: ${integer:99}
	          country: ${ref:countries.code}
	    references:
	      - { type: seed, name: countries, relationship: many_to_one }

	seeds:
	  - name: countries
	    columns:
	      - { name: code, data_type: string }
	    seed_file:
	      path: ${path:this}/seeds/countries.csv

	sources:
	  - name: orders
	    columns:
	      - { name: id, data_type: integer }
	    config: { connection: warehouse, schema_name: public }

# Validation

Connections are validated first, through the connection registry, and added
to a copy of the Context. Everything else is then checked against that copy:

  - generators must be registered
  - option values are parsed into typed values or deferred references
  - seed file paths go through the path factory
  - source connections must be declared
  - references must name an artifact of the given kind

Every failure is collected into a single ValidationError whose entries are
scoped to the offending field, e.g. "tables[0].columns[1].options.max".

# Parsing

	project, err := schema.ParseFile("project.yaml", sc, registry.Default)
	project, err := schema.ParseDir("my_project/", sc, registry.Default)

ParseDir reads project.yaml and then one artifact per file from the tables/,
seeds/ and sources/ subdirectories.
*/
package schema
