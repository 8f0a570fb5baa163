package sqlinline

// Provider API keys live in integration_tokens, one row per provider.

const QSelectProviderKey = `--sql 3c9b7e1a-52d4-4c0f-9e86-1f7a2d4b6c58
select token
from integration_tokens
where provider = $1::text
  and btrim(token) <> ''
`

// QUpsertProviderKey replaces the key and merges $3 into the stored
// properties, so earlier metadata survives a rotation.
const QUpsertProviderKey = `--sql b47e2f90-6a1d-4e3b-8c25-9d0f7a6e1b34
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
