package db

// SchemaSQL defines the material library tables.
const SchemaSQL = `
    -- ==========================================================================
    -- MATERIAL LIBRARY TABLE (registered library roots)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS material_library SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS path ON material_library TYPE string;
    DEFINE FIELD IF NOT EXISTS locked ON material_library TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created ON material_library TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS library_path ON material_library FIELDS path UNIQUE;

    -- ==========================================================================
    -- MATERIAL NODE TABLE (subnets and shader nodes, keyed by path)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS material_node SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS path ON material_node TYPE string;
    DEFINE FIELD IF NOT EXISTS parent ON material_node TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON material_node TYPE string;
    DEFINE FIELD IF NOT EXISTS material ON material_node TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS position ON material_node TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS x ON material_node TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS y ON material_node TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS params ON material_node TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS created ON material_node TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS material_node_path ON material_node FIELDS path UNIQUE;
    DEFINE INDEX IF NOT EXISTS material_node_parent ON material_node FIELDS parent;

    -- ==========================================================================
    -- WIRES RELATION (producer output -> consumer input)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS wires TYPE RELATION IN material_node OUT material_node SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS output ON wires TYPE string;
    DEFINE FIELD IF NOT EXISTS input ON wires TYPE string;
    -- An input has at most one producer
    DEFINE FIELD IF NOT EXISTS unique_key ON wires VALUE string::concat(<string>out, ".", input);
    DEFINE INDEX IF NOT EXISTS unique_input ON wires FIELDS unique_key UNIQUE;
`
