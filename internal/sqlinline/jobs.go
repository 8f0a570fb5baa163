package sqlinline

const QInsertJob = `--sql 3c1f8e2a-5b7d-4a90-8e61-2f4d9c0b7a15
insert into deck_jobs(id, status, progress, current_step, request, artifact_ref, error_detail, created_at, updated_at)
values ($1::uuid, $2::text, $3::int, $4::text, $5::jsonb, $6::text, $7::text, $8::timestamptz, $9::timestamptz);
`

const QSelectJob = `--sql 9a0e7c41-2d6b-4f38-b1c5-6e8f0a3d2b97
select id::text, status, progress, current_step, request, artifact_ref, error_detail, created_at, updated_at
from deck_jobs
where id = $1::uuid;
`

// QReplaceJob only matches while the stored updated_at equals $8, so a stale
// writer updates zero rows.
const QReplaceJob = `--sql 5e7b2f90-8c14-4d6a-9f03-b1a2c4e6d8f0
update deck_jobs
set status = $2::text,
    progress = $3::int,
    current_step = $4::text,
    artifact_ref = $5::text,
    error_detail = $6::text,
    updated_at = $7::timestamptz
where id = $1::uuid
  and updated_at = $8::timestamptz;
`

const QJobExists = `--sql 0d4a6b8c-1e3f-4a5b-8c7d-9e0f1a2b3c4d
select exists(select 1 from deck_jobs where id = $1::uuid);
`

const QListJobs = `--sql 7f2c9d1e-4b6a-4c8e-a0f2-3d5e7b9c1a24
select id::text, status, progress, current_step, request, artifact_ref, error_detail, created_at, updated_at
from deck_jobs
order by created_at desc;
`
